package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"Mano/internal/modules/ai/domain/repository"
	"Mano/internal/modules/ai/domain/vector"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type embedEventRepositoryImpl struct {
	db *gorm.DB
}

func NewEmbedEventRepository(db *gorm.DB) repository.EmbedEventRepository {
	return &embedEventRepositoryImpl{db: db}
}

// Enqueue 依赖 dedup_key 唯一约束做幂等，冲突时静默跳过
func (r *embedEventRepositoryImpl) Enqueue(ctx context.Context, ev *vector.EmbedEvent) error {
	if ev == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(ev).Error
}

func (r *embedEventRepositoryImpl) GetByID(ctx context.Context, id int64) (*vector.EmbedEvent, error) {
	var ev vector.EmbedEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&ev).Error
	if err == nil {
		return &ev, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// publishLease 认领租约：publishing 行在租约到期前不会被其它 relay 实例再次认领，
// 发布方崩溃后到期自动回到可认领状态
const publishLease = 2 * time.Minute

func (r *embedEventRepositoryImpl) ClaimForPublish(ctx context.Context, now time.Time, limit int) ([]vector.EmbedEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var out []vector.EmbedEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var events []vector.EmbedEvent
		q := tx.Model(&vector.EmbedEvent{}).
			Where("status IN ?", []int8{vector.EmbedEventStatusPending, vector.EmbedEventStatusFailed, vector.EmbedEventStatusPublishing}).
			Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
			Order("id ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&events).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		// 行锁随事务提交释放，先在事务内置为 publishing 压上租约，
		// 另一实例在租约内不会二次认领同一批事件
		ids := make([]int64, 0, len(events))
		for i := range events {
			ids = append(ids, events[i].Id)
		}
		if err := tx.Model(&vector.EmbedEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":        vector.EmbedEventStatusPublishing,
				"next_retry_at": now.Add(publishLease),
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}
		out = events
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []vector.EmbedEvent{}
	}
	return out, nil
}

func (r *embedEventRepositoryImpl) MarkPublished(ctx context.Context, id int64) error {
	updates := map[string]any{
		"status":     vector.EmbedEventStatusPublished,
		"last_error": "",
		"updated_at": time.Now(),
	}
	return r.db.WithContext(ctx).Model(&vector.EmbedEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *embedEventRepositoryImpl) MarkPublishFailed(ctx context.Context, id int64, nextRetryAt time.Time, errMsg string) error {
	errMsg = strings.TrimSpace(errMsg)
	if len(errMsg) > 255 {
		errMsg = errMsg[:255]
	}
	updates := map[string]any{
		"status":        vector.EmbedEventStatusFailed,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"next_retry_at": nextRetryAt,
		"last_error":    errMsg,
		"updated_at":    time.Now(),
	}
	return r.db.WithContext(ctx).Model(&vector.EmbedEvent{}).Where("id = ?", id).Updates(updates).Error
}
