package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Queries is the YAML search configuration:
//
//	newsapi:
//	  - smart meter Africa
//	google_news:
//	  queries: [...]
//	  regions: [ae, sa, za]
//	  regions_per_query: 3
//	feeds:
//	  - https://...
type Queries struct {
	NewsAPI    []string         `yaml:"newsapi"`
	GoogleNews GoogleNewsConfig `yaml:"google_news"`
	Feeds      []string         `yaml:"feeds"`
	Countries  []string         `yaml:"countries"`
}

type GoogleNewsConfig struct {
	Queries         []string `yaml:"queries"`
	Regions         []string `yaml:"regions"`
	RegionsPerQuery int      `yaml:"regions_per_query"`
}

// DefaultQueries is used when no queries file exists.
func DefaultQueries() *Queries {
	return &Queries{
		NewsAPI: []string{
			"electricity meter Middle East",
			"smart meter Africa",
			"electricity metering UAE Saudi",
			"smart grid Africa",
			"utility meter Nigeria South Africa",
			"prepaid electricity meter Africa",
			"AMI metering Middle East",
			"electricity meter Egypt Morocco Kenya",
		},
		GoogleNews: GoogleNewsConfig{
			Queries: []string{
				"electricity meter Middle East Africa",
				"smart meter deployment UAE Saudi Arabia",
				"electricity metering project Africa",
				"smart grid Nigeria South Africa Egypt",
				"utility smart meter GCC",
				"prepaid meter Africa",
				"AMR AMI meter Middle East",
			},
			Regions:         []string{"ae", "sa", "za", "ng", "eg", "ke"},
			RegionsPerQuery: 3,
		},
		Countries: []string{
			"UAE", "Saudi Arabia", "Qatar", "Kuwait", "Bahrain", "Oman", "Egypt",
			"South Africa", "Nigeria", "Kenya", "Morocco", "Ghana", "Tanzania", "Ethiopia",
		},
	}
}

// LoadQueries reads the queries file. A missing file yields the defaults;
// sections left empty in the file are filled from the defaults as well.
func LoadQueries(path string) (*Queries, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Queries file %s not found, using built-in queries", path)
		return DefaultQueries(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open queries file: %w", err)
	}
	defer f.Close()

	var q Queries
	if err := yaml.NewDecoder(f).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode queries file %s: %w", path, err)
	}

	def := DefaultQueries()
	if len(q.NewsAPI) == 0 {
		q.NewsAPI = def.NewsAPI
	}
	if len(q.GoogleNews.Queries) == 0 {
		q.GoogleNews.Queries = def.GoogleNews.Queries
	}
	if len(q.GoogleNews.Regions) == 0 {
		q.GoogleNews.Regions = def.GoogleNews.Regions
	}
	if q.GoogleNews.RegionsPerQuery <= 0 {
		q.GoogleNews.RegionsPerQuery = def.GoogleNews.RegionsPerQuery
	}
	if len(q.Countries) == 0 {
		q.Countries = def.Countries
	}
	return &q, nil
}
