// Package directory defines the read-only organizational directory consumed
// by the approver resolver. Employees, departments and grades are owned by an
// external HR system; the engine only reads them.
package directory

import (
	"context"
	"errors"

	"github.com/approvio/approvio/pkg/models"
)

var (
	// ErrEmployeeNotFound indicates an employee was not found by the given identifier.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrDepartmentNotFound indicates a department was not found by the given code.
	ErrDepartmentNotFound = errors.New("department not found")

	// ErrGradeNotFound indicates a grade was not found by the given code.
	ErrGradeNotFound = errors.New("grade not found")
)

// Directory is the consumed collaborator contract for organizational data.
type Directory interface {
	EmployeeByID(ctx context.Context, id string) (*models.Employee, error)
	EmployeesByDepartment(ctx context.Context, department string) ([]*models.Employee, error)
	EmployeesByRole(ctx context.Context, role string) ([]*models.Employee, error)
	EmployeesByGrades(ctx context.Context, gradeCodes []string) ([]*models.Employee, error)

	DepartmentByCode(ctx context.Context, code string) (*models.Department, error)

	GradeByCode(ctx context.Context, code string) (*models.Grade, error)
	GradesByLevelRange(ctx context.Context, minLevel, maxLevel int) ([]*models.Grade, error)
}

// IsEmployeeNotFound checks if an error indicates an employee was not found.
func IsEmployeeNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound)
}
