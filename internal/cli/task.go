package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/pkg/models"
)

// taskIDPrefix is used for IDs assigned by "task add".
const taskIDPrefix = "T-"

var (
	taskAddDue      string
	taskAddPriority string
	taskAddStatus   string
	taskAddID       string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the task registry (list, add, status, due, remove)",
	Long: `Edit tasks.yaml in the data directory.

Phase and material grouping are derived from each task's title, so a title
like "Install laminate flooring" lands in Execution / Flooring.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks in registry order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		if err := TaskStore.Load(); err != nil {
			return err
		}
		tasks := TaskStore.GetAll()
		out := cmd.OutOrStdout()
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks.")
			return nil
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "%-8s %-12s %-8s %-36s %s\n", t.ID, t.Status, t.Priority, t.Title, formatDue(t.DueDate))
		}
		return nil
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		if err := TaskStore.Load(); err != nil {
			return err
		}

		task := models.Task{
			ID:       taskAddID,
			Title:    strings.Join(args, " "),
			Status:   models.TaskStatus(taskAddStatus),
			Priority: models.Priority(taskAddPriority),
		}
		if task.ID == "" {
			task.ID = nextTaskID(TaskStore.GetAll())
		} else if _, err := TaskStore.Get(task.ID); err == nil {
			return fmt.Errorf("task %s already exists", task.ID)
		}
		if taskAddDue != "" {
			due, err := parseDate(taskAddDue)
			if err != nil {
				return fmt.Errorf("parsing --due: %w", err)
			}
			task.DueDate = &due
		}

		if err := TaskStore.Upsert(task); err != nil {
			return err
		}
		if err := TaskStore.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %s\n", task.ID)
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:       "status <task-id> <pending|in_progress|completed>",
	Short:     "Set a task's status",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"pending", "in_progress", "completed"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateTask(cmd, args[0], func(t *models.Task) error {
			t.Status = models.TaskStatus(args[1])
			return nil
		})
	},
}

var taskDueCmd = &cobra.Command{
	Use:   "due <task-id> <YYYY-MM-DD|none>",
	Short: "Set or clear a task's due date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateTask(cmd, args[0], func(t *models.Task) error {
			if args[1] == "none" {
				t.DueDate = nil
				return nil
			}
			due, err := parseDate(args[1])
			if err != nil {
				return err
			}
			t.DueDate = &due
			return nil
		})
	},
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskStore == nil {
			return fmt.Errorf("task store not initialized")
		}
		if err := TaskStore.Load(); err != nil {
			return err
		}
		if err := TaskStore.Remove(args[0]); err != nil {
			return err
		}
		if err := TaskStore.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
		return nil
	},
}

func updateTask(cmd *cobra.Command, id string, mutate func(*models.Task) error) error {
	if TaskStore == nil {
		return fmt.Errorf("task store not initialized")
	}
	if err := TaskStore.Load(); err != nil {
		return err
	}
	task, err := TaskStore.Get(id)
	if err != nil {
		return err
	}
	if err := mutate(task); err != nil {
		return err
	}
	if err := TaskStore.Upsert(*task); err != nil {
		return err
	}
	if err := TaskStore.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", id)
	return nil
}

// nextTaskID returns one past the highest numbered T- ID in tasks.
func nextTaskID(tasks []models.Task) string {
	highest := 0
	for _, t := range tasks {
		n, err := strconv.Atoi(strings.TrimPrefix(t.ID, taskIDPrefix))
		if err != nil || !strings.HasPrefix(t.ID, taskIDPrefix) {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", taskIDPrefix, highest+1)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddID, "id", "", "Task ID (default: next T-NNN)")
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "Due date (YYYY-MM-DD)")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", string(models.PriorityMedium), "Priority (low, medium, high, urgent)")
	taskAddCmd.Flags().StringVar(&taskAddStatus, "status", string(models.StatusPending), "Status (pending, in_progress, completed)")

	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskStatusCmd, taskDueCmd, taskRemoveCmd)
	rootCmd.AddCommand(taskCmd)
}
