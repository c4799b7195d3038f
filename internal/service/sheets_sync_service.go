package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/winthrop-prehealth/tutor-api/internal/models"
	appErrors "github.com/winthrop-prehealth/tutor-api/pkg/errors"
	"github.com/winthrop-prehealth/tutor-api/pkg/export"
)

const (
	sheetFilename      = "students.csv"
	syncCacheKeyExport = "sheets_sync:to_sheets"
	syncCacheKeyImport = "sheets_sync:from_sheets"
)

var sheetHeaders = []string{
	"first_name", "last_name", "primary_email", "secondary_email",
	"class_year", "status", "rt_assignment", "nrt_assignment",
}

type sheetStudentStore interface {
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Create(ctx context.Context, student *models.Student) error
}

type sheetStorage interface {
	Save(filename string, data []byte) (string, error)
	Load(filename string) ([]byte, error)
	Exists(filename string) bool
	ModTime(filename string) (time.Time, error)
}

// SheetsSyncService mirrors the student roster to an external spreadsheet
// file. Sync passes are rate limited through a Redis cache so repeated
// requests within the expiry window return the cached outcome; force
// bypasses the cache.
type SheetsSyncService struct {
	students    sheetStudentStore
	storage     sheetStorage
	codec       *export.CSVCodec
	redis       *redis.Client
	cacheExpiry time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewSheetsSyncService constructs a SheetsSyncService. A nil storage leaves
// the service unconfigured; sync calls then fail with a configuration error.
func NewSheetsSyncService(students sheetStudentStore, storage sheetStorage, codec *export.CSVCodec, redisClient *redis.Client, cacheExpiry time.Duration, logger *zap.Logger) *SheetsSyncService {
	if codec == nil {
		codec = export.NewCSVCodec()
	}
	if cacheExpiry <= 0 {
		cacheExpiry = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetsSyncService{
		students:    students,
		storage:     storage,
		codec:       codec,
		redis:       redisClient,
		cacheExpiry: cacheExpiry,
		logger:      logger,
	}
}

// SetMetrics attaches sync pass instrumentation.
func (s *SheetsSyncService) SetMetrics(m *MetricsService) { s.metrics = m }

// Configured reports whether a spreadsheet backend is wired.
func (s *SheetsSyncService) Configured() bool {
	return s.storage != nil
}

// Export writes the full roster to the spreadsheet mirror. Unless force is
// set, a pass inside the cache window is skipped and reported as cached.
func (s *SheetsSyncService) Export(ctx context.Context, force bool) (result *models.SyncResult, err error) {
	if !s.Configured() {
		return nil, appErrors.Clone(appErrors.ErrSyncNotConfigured, "spreadsheet sync is not configured")
	}
	defer func() { s.metrics.RecordSyncPass("export", err == nil) }()

	if !force && s.recentlySynced(ctx, syncCacheKeyExport) {
		return &models.SyncResult{
			Success:   true,
			Cached:    true,
			Message:   "export skipped, mirror is up to date",
			Timestamp: time.Now().UTC(),
		}, nil
	}

	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}

	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, map[string]string{
			"first_name":      st.FirstName,
			"last_name":       st.LastName,
			"primary_email":   st.PrimaryEmail,
			"secondary_email": st.SecondaryEmail,
			"class_year":      st.ClassYear,
			"status":          string(st.Status),
			"rt_assignment":   st.RTAssignment,
			"nrt_assignment":  st.NRTAssignment,
		})
	}

	raw, err := s.codec.Render(export.Dataset{Headers: sheetHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode roster")
	}
	if _, err := s.storage.Save(sheetFilename, raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to write spreadsheet mirror")
	}

	s.markSynced(ctx, syncCacheKeyExport)
	s.logger.Info("roster exported to spreadsheet mirror", zap.Int("students", len(students)))

	return &models.SyncResult{
		Success:   true,
		Message:   fmt.Sprintf("exported %d students", len(students)),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Import reads the spreadsheet mirror back into the roster. Rows are matched
// by primary email; matched rows update assignments and status, unmatched
// rows create new students. Unless force is set, an unchanged mirror inside
// the cache window is skipped.
func (s *SheetsSyncService) Import(ctx context.Context, force bool) (result *models.SyncResult, err error) {
	if !s.Configured() {
		return nil, appErrors.Clone(appErrors.ErrSyncNotConfigured, "spreadsheet sync is not configured")
	}
	if !s.storage.Exists(sheetFilename) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "spreadsheet mirror has no roster file")
	}
	defer func() { s.metrics.RecordSyncPass("import", err == nil) }()

	if !force && s.recentlySynced(ctx, syncCacheKeyImport) && !s.mirrorChanged(ctx) {
		return &models.SyncResult{
			Success:   true,
			Cached:    true,
			Message:   "import skipped, roster is up to date",
			Timestamp: time.Now().UTC(),
		}, nil
	}

	raw, err := s.storage.Load(sheetFilename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to read spreadsheet mirror")
	}
	data, err := s.codec.Parse(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "spreadsheet mirror is not valid csv")
	}

	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load students")
	}
	byEmail := make(map[string]models.Student, len(students))
	for _, st := range students {
		if st.PrimaryEmail != "" {
			byEmail[trimLower(st.PrimaryEmail)] = st
		}
	}

	updated, created := 0, 0
	for _, row := range data.Rows {
		email := trimLower(row["primary_email"])
		if email == "" {
			continue
		}
		if existing, ok := byEmail[email]; ok {
			if s.applyRow(&existing, row) {
				if err := s.students.Update(ctx, &existing); err != nil {
					s.logger.Warn("failed to update student from mirror",
						zap.String("email", email), zap.Error(err))
					continue
				}
				updated++
			}
			continue
		}
		st := models.Student{
			FirstName:      row["first_name"],
			LastName:       row["last_name"],
			PrimaryEmail:   row["primary_email"],
			SecondaryEmail: row["secondary_email"],
			ClassYear:      row["class_year"],
			Status:         models.ApplicationStatus(row["status"]),
			RTAssignment:   row["rt_assignment"],
			NRTAssignment:  row["nrt_assignment"],
		}
		if !models.ValidApplicationStatus(st.Status) {
			st.Status = models.StatusNotApplying
		}
		if err := s.students.Create(ctx, &st); err != nil {
			s.logger.Warn("failed to create student from mirror",
				zap.String("email", email), zap.Error(err))
			continue
		}
		created++
	}

	s.markSynced(ctx, syncCacheKeyImport)
	s.rememberModTime(ctx)
	s.logger.Info("roster imported from spreadsheet mirror",
		zap.Int("updated", updated), zap.Int("created", created))

	return &models.SyncResult{
		Success:   true,
		Message:   fmt.Sprintf("updated %d students, created %d", updated, created),
		Timestamp: time.Now().UTC(),
	}, nil
}

// Status reports configuration and last sync times.
func (s *SheetsSyncService) Status(ctx context.Context) (*models.SyncStatus, error) {
	status := &models.SyncStatus{Configured: s.Configured()}
	if s.redis == nil {
		return status, nil
	}
	status.LastExport = s.lastSync(ctx, syncCacheKeyExport)
	status.LastImport = s.lastSync(ctx, syncCacheKeyImport)
	return status, nil
}

// applyRow copies assignment and status columns onto the student, reporting
// whether anything changed. Identity columns from the mirror never overwrite
// the roster.
func (s *SheetsSyncService) applyRow(st *models.Student, row map[string]string) bool {
	changed := false
	if v := row["rt_assignment"]; v != st.RTAssignment {
		st.RTAssignment = v
		changed = true
	}
	if v := row["nrt_assignment"]; v != st.NRTAssignment {
		st.NRTAssignment = v
		changed = true
	}
	if v := models.ApplicationStatus(row["status"]); models.ValidApplicationStatus(v) && v != st.Status {
		st.Status = v
		changed = true
	}
	if v := row["class_year"]; v != "" && v != st.ClassYear {
		st.ClassYear = v
		changed = true
	}
	return changed
}

func (s *SheetsSyncService) recentlySynced(ctx context.Context, key string) bool {
	return s.lastSync(ctx, key) != nil
}

func (s *SheetsSyncService) lastSync(ctx context.Context, key string) *time.Time {
	if s.redis == nil {
		return nil
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("sync cache read failed", zap.Error(err))
		}
		return nil
	}
	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &ts
}

func (s *SheetsSyncService) markSynced(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.redis.Set(ctx, key, now, s.cacheExpiry).Err(); err != nil {
		s.logger.Warn("sync cache write failed", zap.Error(err))
	}
}

// mirrorChanged compares the mirror file's modification time against the one
// recorded at the last import.
func (s *SheetsSyncService) mirrorChanged(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	mod, err := s.storage.ModTime(sheetFilename)
	if err != nil {
		return true
	}
	stored, err := s.redis.Get(ctx, syncCacheKeyImport+":modtime").Result()
	if err != nil {
		return true
	}
	return stored != mod.UTC().Format(time.RFC3339Nano)
}

func (s *SheetsSyncService) rememberModTime(ctx context.Context) {
	if s.redis == nil {
		return
	}
	mod, err := s.storage.ModTime(sheetFilename)
	if err != nil {
		return
	}
	key := syncCacheKeyImport + ":modtime"
	if err := s.redis.Set(ctx, key, mod.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		s.logger.Warn("sync cache write failed", zap.Error(err))
	}
}
