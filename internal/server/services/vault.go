package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/dbx"
	"github.com/dmitrijs2005/papervault/internal/filestore"
	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/config"
	"github.com/dmitrijs2005/papervault/internal/server/models"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
)

// NewPaper is the input of VaultService.Create.
type NewPaper struct {
	Plaintext      []byte
	CreatorID      string
	ModeratorID    string
	FileName       string
	CourseIDs      []string
	AcademicYearID string
	Remarks        string
}

// VaultService stores papers encrypted for their creator and moderator.
//
// The envelope goes to the file store and the metadata to the database.
// Create and Delete are serialized per storage path; other operations run
// freely.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	crypto      *EncryptionService
	store       filestore.Store
	logger      logging.Logger
	locks       *keyedMutex
	gracePeriod time.Duration
	now         func() time.Time
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, crypto *EncryptionService, store filestore.Store,
	logger logging.Logger, cfg *config.Config) *VaultService {
	return &VaultService{
		db:          db,
		repomanager: m,
		crypto:      crypto,
		store:       store,
		logger:      logger.With("module", "vault"),
		locks:       newKeyedMutex(),
		gracePeriod: cfg.ReconcileGracePeriod,
		now:         time.Now,
	}
}

// Create encrypts the paper for {creator, moderator}, writes the envelope
// and then records the metadata. If the metadata insert fails the file is
// left behind for Reconcile.
func (s *VaultService) Create(ctx context.Context, in NewPaper) (*models.Paper, error) {
	courseIDs := uniqueStrings(in.CourseIDs)
	if len(courseIDs) == 0 {
		return nil, fmt.Errorf("at least one course is required: %w", common.ErrReferenceNotFound)
	}
	if in.AcademicYearID == "" {
		return nil, fmt.Errorf("academic year is required: %w", common.ErrReferenceNotFound)
	}
	if in.CreatorID == "" || in.ModeratorID == "" {
		return nil, fmt.Errorf("creator and moderator are required: %w", common.ErrValidation)
	}
	if in.CreatorID == in.ModeratorID {
		return nil, fmt.Errorf("creator and moderator must differ: %w", common.ErrValidation)
	}

	path, err := s.store.Locate(in.FileName)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(path)
	defer unlock()

	if err := s.checkReferences(ctx, s.db, in.AcademicYearID, courseIDs); err != nil {
		return nil, err
	}

	taken, err := s.repomanager.Papers(s.db).ExistsByStoragePath(ctx, path)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("file name %q is in use: %w", in.FileName, common.ErrValidation)
	}

	env, err := s.crypto.EncryptForRecipients(ctx, []string{in.CreatorID, in.ModeratorID}, in.Plaintext)
	if err != nil {
		return nil, err
	}

	storedPath, err := s.store.Write(ctx, in.FileName, []byte(env))
	if err != nil {
		return nil, err
	}

	paper := &models.Paper{
		FileName:       in.FileName,
		StoragePath:    storedPath,
		CreatorID:      in.CreatorID,
		ModeratorID:    in.ModeratorID,
		Remarks:        in.Remarks,
		AcademicYearID: in.AcademicYearID,
		CourseIDs:      courseIDs,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Papers(tx)
		if _, err := repo.Create(ctx, paper); err != nil {
			return err
		}
		return repo.SetCourses(ctx, paper.ID, courseIDs)
	})
	if err != nil {
		s.logger.Warn(ctx, "paper metadata not stored, file left for reconciliation", "file_name", in.FileName, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "paper stored", "paper_id", paper.ID, "courses", len(courseIDs))
	return paper, nil
}

// Retrieve decrypts paperID for requesterID. Recipient membership is
// checked by the envelope itself; callers apply their own permission gate.
func (s *VaultService) Retrieve(ctx context.Context, paperID, requesterID string) ([]byte, error) {
	paper, err := s.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}

	env, err := s.store.Read(ctx, paper.StoragePath)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.crypto.DecryptForUser(ctx, requesterID, string(env))
	if err != nil {
		if errors.Is(err, common.ErrNotAuthorized) || errors.Is(err, common.ErrIntegrityViolation) {
			s.logger.Warn(ctx, "paper access refused", "paper_id", paperID, "user_id", requesterID, "kind", common.Kind(err))
		}
		return nil, err
	}

	return plaintext, nil
}

// UpdateMetadata applies the non-empty fields of upd. The envelope is never
// touched: a content change needs a new paper.
func (s *VaultService) UpdateMetadata(ctx context.Context, paperID string, upd models.PaperUpdate) (*models.Paper, error) {
	var paper *models.Paper

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Papers(tx)

		var err error
		if paper, err = repo.GetByID(ctx, paperID); err != nil {
			return paperNotFound(err)
		}

		if upd.FileName != nil && *upd.FileName != "" {
			paper.FileName = *upd.FileName
		}
		if upd.Remarks != nil && *upd.Remarks != "" {
			paper.Remarks = *upd.Remarks
		}

		yearID := ""
		if upd.AcademicYearID != nil && *upd.AcademicYearID != "" {
			yearID = *upd.AcademicYearID
		}
		courseIDs := uniqueStrings(upd.CourseIDs)
		if err := s.checkReferences(ctx, tx, yearID, courseIDs); err != nil {
			return err
		}
		if yearID != "" {
			paper.AcademicYearID = yearID
		}

		if err := repo.Update(ctx, paper); err != nil {
			return paperNotFound(err)
		}

		if len(courseIDs) > 0 {
			if err := repo.SetCourses(ctx, paper.ID, courseIDs); err != nil {
				return err
			}
			paper.CourseIDs = courseIDs
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paper, nil
}

// Delete removes the file and then the metadata. When the file cannot be
// removed the metadata stays, so no row ever loses a file that might still
// exist.
func (s *VaultService) Delete(ctx context.Context, paperID string) error {
	paper, err := s.Get(ctx, paperID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(paper.StoragePath)
	defer unlock()

	// a concurrent Delete may have won the lock
	if paper, err = s.Get(ctx, paperID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, paper.StoragePath); err != nil {
		return err
	}

	if err := s.repomanager.Papers(s.db).Delete(ctx, paper.ID); err != nil {
		return paperNotFound(err)
	}

	s.logger.Info(ctx, "paper deleted", "paper_id", paper.ID)
	return nil
}

// Get returns paper metadata or common.ErrPaperNotFound.
func (s *VaultService) Get(ctx context.Context, paperID string) (*models.Paper, error) {
	paper, err := s.repomanager.Papers(s.db).GetByID(ctx, paperID)
	if err != nil {
		return nil, paperNotFound(err)
	}
	return paper, nil
}

// List returns the metadata of every paper.
func (s *VaultService) List(ctx context.Context) ([]*models.Paper, error) {
	return s.repomanager.Papers(s.db).List(ctx)
}

// ListForUser returns the papers userID is a recipient of.
func (s *VaultService) ListForUser(ctx context.Context, userID string) ([]*models.Paper, error) {
	return s.repomanager.Papers(s.db).ListByParticipant(ctx, userID)
}

// Reconcile removes stored files that no paper references and that are
// older than the grace period, which covers creates still in flight. A file
// that cannot be removed is logged and skipped; the failures are returned
// joined together with the number of files that were removed.
func (s *VaultService) Reconcile(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	paths, err := s.repomanager.Papers(s.db).ListStoragePaths(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}

	cutoff := s.now().Add(-s.gracePeriod)
	removed := 0
	var errs []error

	for _, obj := range objects {
		if _, ok := known[obj.Path]; ok || obj.ModTime.After(cutoff) {
			continue
		}
		ok, err := s.removeOrphan(ctx, obj.Path)
		if err != nil {
			s.logger.Warn(ctx, "orphan not removed", "path", obj.Path, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info(ctx, "orphaned files removed", "count", removed)
	}
	return removed, errors.Join(errs...)
}

func (s *VaultService) removeOrphan(ctx context.Context, path string) (bool, error) {
	unlock := s.locks.Lock(path)
	defer unlock()

	taken, err := s.repomanager.Papers(s.db).ExistsByStoragePath(ctx, path)
	if err != nil || taken {
		return false, err
	}

	if err := s.store.Delete(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

func (s *VaultService) checkReferences(ctx context.Context, db dbx.DBTX, academicYearID string, courseIDs []string) error {
	if academicYearID != "" {
		ok, err := s.repomanager.AcademicYears(db).Exists(ctx, academicYearID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("academic year %s: %w", academicYearID, common.ErrReferenceNotFound)
		}
	}

	courses := s.repomanager.Courses(db)
	for _, id := range courseIDs {
		ok, err := courses.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("course %s: %w", id, common.ErrReferenceNotFound)
		}
	}
	return nil
}

func paperNotFound(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrPaperNotFound
	}
	return err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
