package serverstore

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout for a server seed file:
//
//	servers:
//	  - name: build-box
//	    host: build.example.com
//	    port: 22
//	    username: dev
//	    key_path: ~/.ssh/id_ed25519
type seedFile struct {
	Servers []seedServer `yaml:"servers"`
}

type seedServer struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	KeyPath  string `yaml:"key_path"`
	Locked   bool   `yaml:"locked"`
}

// ImportSeedFile loads server definitions from a YAML file and creates any
// that are not already present (matched by name+host). Returns the number
// of servers created. A missing file is not an error.
func (s *Store) ImportSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for i, def := range seed.Servers {
		if def.Name == "" || def.Host == "" {
			return created, fmt.Errorf("seed entry %d: name and host are required", i)
		}

		var count int64
		if err := s.db.Model(&Server{}).Where("name = ? AND host = ?", def.Name, def.Host).Count(&count).Error; err != nil {
			return created, fmt.Errorf("check existing server %q: %w", def.Name, err)
		}
		if count > 0 {
			continue
		}

		srv := &Server{
			Name:     def.Name,
			Host:     def.Host,
			Port:     def.Port,
			Username: def.Username,
			KeyPath:  def.KeyPath,
			Locked:   def.Locked,
		}
		if err := s.Create(srv); err != nil {
			return created, err
		}
		created++
	}

	if created > 0 {
		log.Printf("[serverstore] imported %d server(s) from %s", created, path)
	}
	return created, nil
}
