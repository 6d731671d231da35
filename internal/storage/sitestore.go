package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/buildphase/pkg/models"
	"gopkg.in/yaml.v3"
)

// Site data files inside the data directory. Each is optional; a missing file
// means the source reported nothing.
const (
	MaterialsFileName = "materials.yaml"
	ForecastFileName  = "forecast.yaml"
	CrewFileName      = "crew.yaml"
)

// SiteDataStore reads the read-only site inputs: the material list, the
// weather forecast and the crew presence snapshot.
type SiteDataStore interface {
	LoadMaterials() ([]models.Material, error)
	LoadForecast() ([]models.ForecastDay, error)
	LoadCrew() ([]models.CrewLocation, error)
}

type materialsFile struct {
	Materials []models.Material `yaml:"materials"`
}

type forecastFile struct {
	Days []models.ForecastDay `yaml:"days"`
}

type crewFile struct {
	Crew []models.CrewLocation `yaml:"crew"`
}

type fileSiteDataStore struct {
	dir string
}

// NewSiteDataStore creates a SiteDataStore reading YAML files from dir.
func NewSiteDataStore(dir string) SiteDataStore {
	return &fileSiteDataStore{dir: dir}
}

func (s *fileSiteDataStore) LoadMaterials() ([]models.Material, error) {
	var f materialsFile
	if err := s.readYAML(MaterialsFileName, &f); err != nil {
		return nil, err
	}
	for i := range f.Materials {
		m := &f.Materials[i]
		if err := validateRecord("material", fmt.Sprintf("#%d", i+1), m); err != nil {
			return nil, fmt.Errorf("loading materials: %w", err)
		}
	}
	return f.Materials, nil
}

func (s *fileSiteDataStore) LoadForecast() ([]models.ForecastDay, error) {
	var f forecastFile
	if err := s.readYAML(ForecastFileName, &f); err != nil {
		return nil, err
	}
	for i := range f.Days {
		d := &f.Days[i]
		if err := validateRecord("forecast day", d.Date.Format("2006-01-02"), d); err != nil {
			return nil, fmt.Errorf("loading forecast: %w", err)
		}
	}
	return f.Days, nil
}

func (s *fileSiteDataStore) LoadCrew() ([]models.CrewLocation, error) {
	var f crewFile
	if err := s.readYAML(CrewFileName, &f); err != nil {
		return nil, err
	}
	for i := range f.Crew {
		c := &f.Crew[i]
		if err := validateRecord("crew member", c.MemberID, c); err != nil {
			return nil, fmt.Errorf("loading crew: %w", err)
		}
	}
	return f.Crew, nil
}

func (s *fileSiteDataStore) readYAML(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("reading %s: parsing YAML: %w", name, err)
	}
	return nil
}
