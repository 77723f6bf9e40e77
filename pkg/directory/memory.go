package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/approvio/approvio/pkg/models"
)

// Seed is the on-disk shape consumed by NewFromFile.
type Seed struct {
	Employees   []*models.Employee   `json:"employees"`
	Departments []*models.Department `json:"departments"`
	Grades      []*models.Grade      `json:"grades"`
}

// Memory is a seedable in-memory directory used by the binaries and tests.
// Real deployments adapt Directory to the HR system of record.
type Memory struct {
	mu          sync.RWMutex
	employees   map[string]*models.Employee
	departments map[string]*models.Department
	grades      map[string]*models.Grade
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		employees:   make(map[string]*models.Employee),
		departments: make(map[string]*models.Department),
		grades:      make(map[string]*models.Grade),
	}
}

// NewFromFile loads a directory seed from a JSON file.
func NewFromFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory seed: %w", err)
	}

	var seed Seed

	err = json.Unmarshal(data, &seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse directory seed: %w", err)
	}

	dir := NewMemory()
	dir.Load(&seed)

	return dir, nil
}

// Load replaces the directory contents with the given seed.
func (m *Memory) Load(seed *Seed) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.employees = make(map[string]*models.Employee, len(seed.Employees))
	for _, employee := range seed.Employees {
		m.employees[employee.ID] = employee
	}

	m.departments = make(map[string]*models.Department, len(seed.Departments))
	for _, department := range seed.Departments {
		m.departments[department.Code] = department
	}

	m.grades = make(map[string]*models.Grade, len(seed.Grades))
	for _, grade := range seed.Grades {
		m.grades[grade.Code] = grade
	}
}

// AddEmployee registers an employee, replacing any existing entry with the same ID.
func (m *Memory) AddEmployee(employee *models.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.employees[employee.ID] = employee
}

// AddDepartment registers a department.
func (m *Memory) AddDepartment(department *models.Department) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.departments[department.Code] = department
}

// AddGrade registers a grade.
func (m *Memory) AddGrade(grade *models.Grade) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.grades[grade.Code] = grade
}

func (m *Memory) EmployeeByID(_ context.Context, id string) (*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employee, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}

	return employee, nil
}

func (m *Memory) EmployeesByDepartment(_ context.Context, department string) ([]*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Employee, 0)

	for _, employee := range m.employees {
		if employee.Department == department {
			result = append(result, employee)
		}
	}

	sortEmployees(result)

	return result, nil
}

func (m *Memory) EmployeesByRole(_ context.Context, role string) ([]*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Employee, 0)

	for _, employee := range m.employees {
		if employee.Role == role {
			result = append(result, employee)
		}
	}

	sortEmployees(result)

	return result, nil
}

func (m *Memory) EmployeesByGrades(_ context.Context, gradeCodes []string) ([]*models.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(gradeCodes))
	for _, code := range gradeCodes {
		wanted[code] = true
	}

	result := make([]*models.Employee, 0)

	for _, employee := range m.employees {
		if wanted[employee.GradeCode] {
			result = append(result, employee)
		}
	}

	sortEmployees(result)

	return result, nil
}

func (m *Memory) DepartmentByCode(_ context.Context, code string) (*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	department, ok := m.departments[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDepartmentNotFound, code)
	}

	return department, nil
}

func (m *Memory) GradeByCode(_ context.Context, code string) (*models.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grade, ok := m.grades[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGradeNotFound, code)
	}

	return grade, nil
}

func (m *Memory) GradesByLevelRange(_ context.Context, minLevel, maxLevel int) ([]*models.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Grade, 0)

	for _, grade := range m.grades {
		if grade.Level >= minLevel && grade.Level <= maxLevel {
			result = append(result, grade)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Level < result[j].Level
	})

	return result, nil
}

// sortEmployees keeps map iteration from leaking into resolver ordering.
func sortEmployees(employees []*models.Employee) {
	sort.Slice(employees, func(i, j int) bool {
		return employees[i].ID < employees[j].ID
	})
}
