package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID  `json:"id"`
	Username      string     `json:"username"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	SeniorManager bool       `json:"seniorManager"`
	ManagerID     *uuid.UUID `json:"managerId,omitempty"`
	IsActive      bool       `json:"isActive"`
	EmployeeCode  string     `json:"employeeCode"`
	Gender        string     `json:"gender,omitempty"`
	MaritalStatus string     `json:"maritalStatus,omitempty"`
	Mobile        string     `json:"mobile,omitempty"`
	JobTitle      string     `json:"jobTitle,omitempty"`
	BusinessUnit  string     `json:"businessUnit,omitempty"`
	Department    string     `json:"department,omitempty"`
	JoinedDate    *time.Time `json:"joinedDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Directory entry for approver pickers and employee lists.
type Summary struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	FullName      string    `json:"fullName"`
	Role          string    `json:"role"`
	SeniorManager bool      `json:"seniorManager"`
	EmployeeCode  string    `json:"employeeCode"`
	IsActive      bool      `json:"isActive"`
}

type CreateInput struct {
	Username      string     `json:"username"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Password      string     `json:"password"`
	Role          string     `json:"role"`
	SeniorManager bool       `json:"seniorManager"`
	ManagerID     *uuid.UUID `json:"managerId"`
	Gender        string     `json:"gender"`
	MaritalStatus string     `json:"maritalStatus"`
	Mobile        string     `json:"mobile"`
	JobTitle      string     `json:"jobTitle"`
	BusinessUnit  string     `json:"businessUnit"`
	Department    string     `json:"department"`
	JoinedDate    *time.Time `json:"joinedDate"`
}

type ProfileInput struct {
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	ManagerID     *uuid.UUID `json:"managerId"`
	Gender        string     `json:"gender"`
	MaritalStatus string     `json:"maritalStatus"`
	Mobile        string     `json:"mobile"`
	JobTitle      string     `json:"jobTitle"`
	BusinessUnit  string     `json:"businessUnit"`
	Department    string     `json:"department"`
	JoinedDate    *time.Time `json:"joinedDate"`
}

type ListFilter struct {
	Role    string
	Active  *bool
	Search  string
	ShowAll bool
}
