package models

// EmploymentStatus is the employment state of a directory employee.
type EmploymentStatus string

const (
	EmploymentActive     EmploymentStatus = "active"
	EmploymentSuspended  EmploymentStatus = "suspended"
	EmploymentTerminated EmploymentStatus = "terminated"
)

// Employee is the read-only directory projection consumed by the approver
// resolver. The engine never writes employees.
type Employee struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name,omitempty"`
	GradeCode           string           `json:"grade_code"`
	Department          string           `json:"department"`
	ReportsTo           string           `json:"reports_to,omitempty"`
	Role                string           `json:"role,omitempty"`
	Status              EmploymentStatus `json:"status"`
	IsSupervisor        bool             `json:"is_supervisor"`
	IsDepartmentManager bool             `json:"is_department_manager"`
}

// IsActive reports whether the employee is employment-active.
func (e *Employee) IsActive() bool {
	return e.Status == EmploymentActive
}

// CanSupervise reports whether the employee may be assigned supervisory
// approval stages.
func (e *Employee) CanSupervise() bool {
	return e.IsSupervisor || e.IsDepartmentManager
}

// Department is the read-only department projection.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Grade is the read-only grade projection with its numeric ordering.
type Grade struct {
	Code  string `json:"code"`
	Level int    `json:"level"`
}
