// Package models defines server-side data models persisted in the database.
package models

import "time"

// Paper is the metadata row of a stored exam paper. The file content
// lives in the file store at StoragePath as an encoded envelope.
type Paper struct {
	ID             string
	FileName       string
	StoragePath    string
	CreatorID      string
	ModeratorID    string
	Remarks        string
	AcademicYearID string
	CourseIDs      []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaperUpdate carries a partial metadata change; nil fields are untouched.
type PaperUpdate struct {
	FileName       *string
	Remarks        *string
	AcademicYearID *string
	CourseIDs      []string
}

// Course is a reference entity papers are attached to.
type Course struct {
	ID   string
	Code string
	Name string
}

// AcademicYear is a reference entity papers belong to.
type AcademicYear struct {
	ID   string
	Name string
}
