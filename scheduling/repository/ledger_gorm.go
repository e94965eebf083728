package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	pkgError "github.com/AzielCF/postpilot/pkg/error"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/AzielCF/postpilot/scheduling/domain/platform"
	"gorm.io/gorm"
)

// ILedgerRepository is the persistence boundary of the scheduling engine.
type ILedgerRepository interface {
	Init(ctx context.Context) error
	// WithTx runs fn against a transactional view of the repository. Multi
	// row mutations (edits, deletes, horizon extensions) go through it so a
	// partial edit can never leave instances inconsistent with their rule.
	WithTx(ctx context.Context, fn func(tx ILedgerRepository) error) error

	CreatePost(ctx context.Context, post common.ScheduledPost) error
	GetPost(ctx context.Context, accountID, id string) (common.ScheduledPost, error)
	ListPosts(ctx context.Context, accountID string) ([]common.ScheduledPost, error)
	ListRecurringPosts(ctx context.Context) ([]common.ScheduledPost, error)
	UpdatePost(ctx context.Context, post common.ScheduledPost) error
	DeletePost(ctx context.Context, id string) error

	// CreateInstance returns a ConflictError when an instance for the same
	// (parent_id, occurrence_time) already exists.
	CreateInstance(ctx context.Context, instance common.PostInstance) error
	GetInstance(ctx context.Context, id string) (common.PostInstance, error)
	ListInstances(ctx context.Context, parentID string) ([]common.PostInstance, error)
	ListDueInstances(ctx context.Context, from, to time.Time) ([]common.PostInstance, error)
	ListNonTerminalInstances(ctx context.Context, parentID string) ([]common.PostInstance, error)
	LatestOccurrence(ctx context.Context, parentID string) (time.Time, bool, error)
	UpdateInstance(ctx context.Context, instance common.PostInstance) error
	// TransitionInstance performs the compare-and-swap state change. It
	// reports false (and no error) when the instance was not in the
	// expected from state, which means another caller won the claim.
	TransitionInstance(ctx context.Context, id string, from, to common.InstanceState) (bool, error)
	// RetryInstance is the failed -> scheduled compare-and-swap. The old
	// attempt's results and error message are cleared inside the same
	// conditional update: a dispatcher claiming the instance right after
	// the swap can never be overwritten by a late cleanup write.
	RetryInstance(ctx context.Context, id string) (bool, error)
	DeleteScheduledFrom(ctx context.Context, parentID string, from time.Time) (int64, error)
	DeleteInstancesByParent(ctx context.Context, parentID string) error
}

// --- Persistence Models ---

type scheduledPostModel struct {
	ID              string         `gorm:"primaryKey"`
	AccountID       string         `gorm:"column:account_id;not null;index"`
	Content         string         `gorm:"column:content;not null"`
	MediaRefs       sql.NullString `gorm:"column:media_refs"` // JSON
	Platforms       string         `gorm:"column:platforms;not null"` // JSON
	FirstOccurrence time.Time      `gorm:"column:first_occurrence;not null"`
	Recurrence      sql.NullString `gorm:"column:recurrence"` // JSON, null for one-off posts
	HorizonKind     string         `gorm:"column:horizon_kind;default:'days'"`
	HorizonValue    int            `gorm:"column:horizon_value;default:90"`
	EmittedCount    int            `gorm:"column:emitted_count;default:0"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

func (scheduledPostModel) TableName() string { return "scheduled_posts" }

type postInstanceModel struct {
	ID             string         `gorm:"primaryKey"`
	ParentID       string         `gorm:"column:parent_id;not null;index;uniqueIndex:idx_parent_occurrence"`
	AccountID      string         `gorm:"column:account_id;not null;index"`
	Content        string         `gorm:"column:content;not null"`
	MediaRefs      sql.NullString `gorm:"column:media_refs"` // JSON
	Platforms      string         `gorm:"column:platforms;not null"` // JSON
	OccurrenceTime time.Time      `gorm:"column:occurrence_time;not null;index;uniqueIndex:idx_parent_occurrence"`
	State          string         `gorm:"column:state;default:'scheduled';index"`
	Results        sql.NullString `gorm:"column:results"` // JSON
	ErrorMessage   sql.NullString `gorm:"column:error_message"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

func (postInstanceModel) TableName() string { return "post_instances" }

// --- Repository Implementation ---

type LedgerGormRepository struct {
	db *gorm.DB
}

func NewLedgerGormRepository(db *gorm.DB) *LedgerGormRepository {
	return &LedgerGormRepository{db: db}
}

func (r *LedgerGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&scheduledPostModel{},
		&postInstanceModel{},
	)
}

func (r *LedgerGormRepository) WithTx(ctx context.Context, fn func(tx ILedgerRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LedgerGormRepository{db: tx})
	})
}

// Scheduled posts

func (r *LedgerGormRepository) CreatePost(ctx context.Context, post common.ScheduledPost) error {
	model := toScheduledPostModel(post)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *LedgerGormRepository) GetPost(ctx context.Context, accountID, id string) (common.ScheduledPost, error) {
	var m scheduledPostModel
	if err := r.db.WithContext(ctx).First(&m, "id = ? AND account_id = ?", id, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ScheduledPost{}, common.ErrPostNotFound
		}
		return common.ScheduledPost{}, err
	}
	return fromScheduledPostModel(m), nil
}

func (r *LedgerGormRepository) ListPosts(ctx context.Context, accountID string) ([]common.ScheduledPost, error) {
	var models []scheduledPostModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("first_occurrence ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]common.ScheduledPost, len(models))
	for i, m := range models {
		res[i] = fromScheduledPostModel(m)
	}
	return res, nil
}

func (r *LedgerGormRepository) ListRecurringPosts(ctx context.Context) ([]common.ScheduledPost, error) {
	var models []scheduledPostModel
	if err := r.db.WithContext(ctx).Where("recurrence IS NOT NULL").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]common.ScheduledPost, len(models))
	for i, m := range models {
		res[i] = fromScheduledPostModel(m)
	}
	return res, nil
}

func (r *LedgerGormRepository) UpdatePost(ctx context.Context, post common.ScheduledPost) error {
	model := toScheduledPostModel(post)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *LedgerGormRepository) DeletePost(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&scheduledPostModel{}, "id = ?", id).Error
}

// Post instances

func (r *LedgerGormRepository) CreateInstance(ctx context.Context, instance common.PostInstance) error {
	model := toPostInstanceModel(instance)
	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil && isDuplicateKey(err) {
		return pkgError.ConflictError("instance already materialized for this occurrence")
	}
	return err
}

func (r *LedgerGormRepository) GetInstance(ctx context.Context, id string) (common.PostInstance, error) {
	var m postInstanceModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.PostInstance{}, common.ErrInstanceNotFound
		}
		return common.PostInstance{}, err
	}
	return fromPostInstanceModel(m), nil
}

func (r *LedgerGormRepository) ListInstances(ctx context.Context, parentID string) ([]common.PostInstance, error) {
	var models []postInstanceModel
	if err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("occurrence_time ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]common.PostInstance, len(models))
	for i, m := range models {
		res[i] = fromPostInstanceModel(m)
	}
	return res, nil
}

func (r *LedgerGormRepository) ListDueInstances(ctx context.Context, from, to time.Time) ([]common.PostInstance, error) {
	var models []postInstanceModel
	err := r.db.WithContext(ctx).
		Where("state = ? AND occurrence_time >= ? AND occurrence_time <= ?", string(common.InstanceStateScheduled), from, to).
		Order("occurrence_time ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]common.PostInstance, len(models))
	for i, m := range models {
		res[i] = fromPostInstanceModel(m)
	}
	return res, nil
}

func (r *LedgerGormRepository) ListNonTerminalInstances(ctx context.Context, parentID string) ([]common.PostInstance, error) {
	var models []postInstanceModel
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND state IN ?", parentID, []string{
			string(common.InstanceStateScheduled),
			string(common.InstanceStateDispatching),
		}).
		Order("occurrence_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]common.PostInstance, len(models))
	for i, m := range models {
		res[i] = fromPostInstanceModel(m)
	}
	return res, nil
}

func (r *LedgerGormRepository) LatestOccurrence(ctx context.Context, parentID string) (time.Time, bool, error) {
	var m postInstanceModel
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("occurrence_time DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return m.OccurrenceTime, true, nil
}

func (r *LedgerGormRepository) UpdateInstance(ctx context.Context, instance common.PostInstance) error {
	model := toPostInstanceModel(instance)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *LedgerGormRepository) TransitionInstance(ctx context.Context, id string, from, to common.InstanceState) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&postInstanceModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(map[string]any{
			"state":      string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerGormRepository) RetryInstance(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&postInstanceModel{}).
		Where("id = ? AND state = ?", id, string(common.InstanceStateFailed)).
		Updates(map[string]any{
			"state":         string(common.InstanceStateScheduled),
			"results":       nil,
			"error_message": nil,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerGormRepository) DeleteScheduledFrom(ctx context.Context, parentID string, from time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("parent_id = ? AND state = ? AND occurrence_time >= ?", parentID, string(common.InstanceStateScheduled), from).
		Delete(&postInstanceModel{})
	return res.RowsAffected, res.Error
}

func (r *LedgerGormRepository) DeleteInstancesByParent(ctx context.Context, parentID string) error {
	return r.db.WithContext(ctx).Where("parent_id = ?", parentID).Delete(&postInstanceModel{}).Error
}

// --- Mappers ---

func toScheduledPostModel(p common.ScheduledPost) scheduledPostModel {
	mediaJSON, _ := json.Marshal(p.MediaRefs)
	platformsJSON, _ := json.Marshal(p.Platforms)

	var recurrence sql.NullString
	if p.Recurrence != nil {
		ruleJSON, _ := json.Marshal(p.Recurrence)
		recurrence = sql.NullString{String: string(ruleJSON), Valid: true}
	}

	return scheduledPostModel{
		ID:              p.ID,
		AccountID:       p.AccountID,
		Content:         p.Content,
		MediaRefs:       sql.NullString{String: string(mediaJSON), Valid: len(p.MediaRefs) > 0},
		Platforms:       string(platformsJSON),
		FirstOccurrence: p.FirstOccurrence,
		Recurrence:      recurrence,
		HorizonKind:     string(p.Horizon.Kind),
		HorizonValue:    p.Horizon.Value,
		EmittedCount:    p.EmittedCount,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func fromScheduledPostModel(m scheduledPostModel) common.ScheduledPost {
	var mediaRefs []string
	if v := nullStringValue(m.MediaRefs); v != "" {
		_ = json.Unmarshal([]byte(v), &mediaRefs)
	}
	var platforms []platform.Platform
	_ = json.Unmarshal([]byte(m.Platforms), &platforms)

	var rule *common.RecurrenceRule
	if v := nullStringValue(m.Recurrence); v != "" && v != "null" {
		var parsed common.RecurrenceRule
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			rule = &parsed
		}
	}

	return common.ScheduledPost{
		ID:              m.ID,
		AccountID:       m.AccountID,
		Content:         m.Content,
		MediaRefs:       mediaRefs,
		Platforms:       platforms,
		FirstOccurrence: m.FirstOccurrence,
		Recurrence:      rule,
		Horizon: common.HorizonPolicy{
			Kind:  common.HorizonKind(m.HorizonKind),
			Value: m.HorizonValue,
		},
		EmittedCount: m.EmittedCount,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toPostInstanceModel(i common.PostInstance) postInstanceModel {
	mediaJSON, _ := json.Marshal(i.MediaRefs)
	platformsJSON, _ := json.Marshal(i.Platforms)

	var results sql.NullString
	if len(i.Results) > 0 {
		resultsJSON, _ := json.Marshal(i.Results)
		results = sql.NullString{String: string(resultsJSON), Valid: true}
	}

	return postInstanceModel{
		ID:             i.ID,
		ParentID:       i.ParentID,
		AccountID:      i.AccountID,
		Content:        i.Content,
		MediaRefs:      sql.NullString{String: string(mediaJSON), Valid: len(i.MediaRefs) > 0},
		Platforms:      string(platformsJSON),
		OccurrenceTime: i.OccurrenceTime,
		State:          string(i.State),
		Results:        results,
		ErrorMessage:   sql.NullString{String: i.ErrorMessage, Valid: i.ErrorMessage != ""},
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func fromPostInstanceModel(m postInstanceModel) common.PostInstance {
	var mediaRefs []string
	if v := nullStringValue(m.MediaRefs); v != "" {
		_ = json.Unmarshal([]byte(v), &mediaRefs)
	}
	var platforms []platform.Platform
	_ = json.Unmarshal([]byte(m.Platforms), &platforms)

	var results map[platform.Platform]common.PlatformResult
	if v := nullStringValue(m.Results); v != "" {
		_ = json.Unmarshal([]byte(v), &results)
	}

	return common.PostInstance{
		ID:             m.ID,
		ParentID:       m.ParentID,
		AccountID:      m.AccountID,
		Content:        m.Content,
		MediaRefs:      mediaRefs,
		Platforms:      platforms,
		OccurrenceTime: m.OccurrenceTime,
		State:          common.InstanceState(m.State),
		Results:        results,
		ErrorMessage:   nullStringValue(m.ErrorMessage),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite without error translation surfaces the raw constraint message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullStringValue returns a trimmed string or empty if null to prevent legacy data panics.
func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return strings.TrimSpace(ns.String)
}
