package model

// UserRole mirrors the role claim issued by the auth collaborator.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// CanReview reports whether the role may grade, disqualify or read cohort data.
func (r UserRole) CanReview() bool {
	return r == Teacher || r == Admin
}
