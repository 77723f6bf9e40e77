// Package file provides file-based persistence for workflow definitions,
// instances, delegations and grade policies. Each entity is one JSON document
// under a per-collection directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/approvio/approvio/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	delegationRepo *DelegationRepository
	gradePolicies  *GradePolicyRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewDefinitionRepository(cleanRoot),
		instanceRepo:   NewInstanceRepository(cleanRoot),
		delegationRepo: NewDelegationRepository(cleanRoot),
		gradePolicies:  NewGradePolicyRepository(cleanRoot),
	}
}

func (fp *Persistence) Definitions() persistence.DefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) Instances() persistence.InstanceRepository {
	return fp.instanceRepo
}

func (fp *Persistence) Delegations() persistence.DelegationRepository {
	return fp.delegationRepo
}

func (fp *Persistence) GradePolicies() persistence.GradePolicyRepository {
	return fp.gradePolicies
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// store is the shared JSON-document helper behind every file repository.
type store struct {
	mu  sync.RWMutex
	dir string
}

func newStore(root, collection string) *store {
	return &store{dir: filepath.Join(root, collection)}
}

// validateID guards against path traversal through entity identifiers.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("entity ID cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("entity ID contains invalid characters")
	}

	return nil
}

func (s *store) write(id string, entity any) error {
	err := validateID(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(s.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", id, err)
	}

	err = os.WriteFile(filepath.Join(s.dir, id+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write entity %s: %w", id, err)
	}

	return nil
}

// read unmarshals one document into entity; found is false when the document
// does not exist.
func (s *store) read(id string, entity any) (bool, error) {
	err := validateID(id)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read entity %s: %w", id, err)
	}

	err = json.Unmarshal(data, entity)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal entity %s: %w", id, err)
	}

	return true, nil
}

// ids lists every document ID in the collection.
func (s *store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	result := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		result = append(result, strings.TrimSuffix(name, ".json"))
	}

	return result, nil
}
