package grpc

import (
	"time"

	"github.com/dmitrijs2005/papervault/internal/server/models"
)

// Empty is used by calls that take or return nothing.
type Empty struct{}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UploadPaperRequest stores Content encrypted for the caller (as creator)
// and ModeratorID.
type UploadPaperRequest struct {
	FileName       string   `json:"file_name"`
	Content        []byte   `json:"content"`
	ModeratorID    string   `json:"moderator_id"`
	CourseIDs      []string `json:"course_ids"`
	AcademicYearID string   `json:"academic_year_id"`
	Remarks        string   `json:"remarks"`
}

type PaperRequest struct {
	PaperID string `json:"paper_id"`
}

// UpdatePaperRequest changes metadata only; absent or empty fields are
// left as they are.
type UpdatePaperRequest struct {
	PaperID        string   `json:"paper_id"`
	FileName       *string  `json:"file_name,omitempty"`
	Remarks        *string  `json:"remarks,omitempty"`
	AcademicYearID *string  `json:"academic_year_id,omitempty"`
	CourseIDs      []string `json:"course_ids,omitempty"`
}

type PaperInfo struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	CreatorID      string    `json:"creator_id"`
	ModeratorID    string    `json:"moderator_id"`
	Remarks        string    `json:"remarks"`
	AcademicYearID string    `json:"academic_year_id"`
	CourseIDs      []string  `json:"course_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type PaperResponse struct {
	Paper PaperInfo `json:"paper"`
}

type GetPaperResponse struct {
	Paper   PaperInfo `json:"paper"`
	Content []byte    `json:"content"`
}

type ListPapersResponse struct {
	Papers []PaperInfo `json:"papers"`
}

type RoleBindingRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// ListRolesRequest lists every role, or only those of UserID when set.
type ListRolesRequest struct {
	UserID string `json:"user_id,omitempty"`
}

type RoleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

type DeleteUserRequest struct {
	UserID string `json:"user_id"`
}

type CreateCourseRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CourseInfo struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type ListCoursesResponse struct {
	Courses []CourseInfo `json:"courses"`
}

type CreateAcademicYearRequest struct {
	Name string `json:"name"`
}

type AcademicYearInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListAcademicYearsResponse struct {
	AcademicYears []AcademicYearInfo `json:"academic_years"`
}

func toPaperInfo(p *models.Paper) PaperInfo {
	return PaperInfo{
		ID:             p.ID,
		FileName:       p.FileName,
		CreatorID:      p.CreatorID,
		ModeratorID:    p.ModeratorID,
		Remarks:        p.Remarks,
		AcademicYearID: p.AcademicYearID,
		CourseIDs:      p.CourseIDs,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPaperInfos(papers []*models.Paper) []PaperInfo {
	out := make([]PaperInfo, 0, len(papers))
	for _, p := range papers {
		out = append(out, toPaperInfo(p))
	}
	return out
}

func toRoleInfos(roles []*models.Role) []RoleInfo {
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{ID: r.ID, Name: r.Name, Description: r.Description})
	}
	return out
}
