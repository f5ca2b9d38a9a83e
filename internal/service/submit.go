package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/metrics"
	"vetorial-dashboard/internal/normalizer"
	"vetorial-dashboard/internal/realtime"
	"vetorial-dashboard/internal/repository"

	"go.uber.org/zap"
)

// Submit 提交一条巡查记录
//  1. 新记录先以草稿（无 id）合并进列表
//  2. 按名称确保辖区存在（首次引用即创建）
//  3. 无 id 插入；有 id 时先校验存储中该记录当前辖区的授权，再更新（未知 id 返回 repository.ErrNotFound）
//  4. 带 id 的记录再次合并（复合键找到草稿并原位替换）
//  5. 通过配置的 Publisher 发布变更
//
// 存储写入失败时草稿保留在列表中，返回错误
func (d *Dashboard) Submit(ctx context.Context, userID string, rec domain.Record) (realtime.MergeResult, error) {
	res, err := d.submit(ctx, userID, rec)
	switch {
	case err == nil:
		metrics.SubmissionsTotal.WithLabelValues("saved").Inc()
	case errors.Is(err, ErrStoreUnavailable):
		metrics.SubmissionsTotal.WithLabelValues("draft").Inc()
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidRecord), errors.Is(err, repository.ErrNotFound):
		metrics.SubmissionsTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
	}
	return res, err
}

func (d *Dashboard) submit(ctx context.Context, userID string, rec domain.Record) (realtime.MergeResult, error) {
	if !d.access.HasPermission(ctx, userID, domain.PermissionForm) {
		return realtime.MergeResult{}, fmt.Errorf("form: %w", ErrForbidden)
	}

	rec = normalizer.Canonical(rec)
	if err := validateRecord(rec); err != nil {
		return realtime.MergeResult{}, err
	}
	if !d.access.HasAccess(ctx, userID, rec.LocalityName) {
		return realtime.MergeResult{}, fmt.Errorf("locality %q: %w", rec.LocalityName, ErrForbidden)
	}

	var res realtime.MergeResult
	if rec.IsDraft() {
		res = d.list.Apply(rec)
	}

	if d.store == nil || d.store.Records == nil || d.store.Localities == nil {
		return res, ErrStoreUnavailable
	}

	// 更新时按存储中的当前辖区再校验一次，不能借更新把别的辖区的记录改到自己名下
	if !rec.IsDraft() {
		current, err := d.storedLocality(ctx, rec.ID)
		if err != nil {
			return res, err
		}
		if !d.access.HasAccess(ctx, userID, current) {
			return res, fmt.Errorf("record %s in locality %q: %w", rec.ID, current, ErrForbidden)
		}
	}

	loc, err := d.store.Localities.EnsureLocality(ctx, rec.LocalityName)
	if err != nil {
		return res, fmt.Errorf("failed to ensure locality: %w", err)
	}
	rec.LocalityID = loc.ID
	rec.LocalityName = loc.Name

	op := realtime.OpUpdate
	if rec.IsDraft() {
		op = realtime.OpInsert
		id, err := d.store.Records.InsertRecord(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("failed to save record: %w", err)
		}
		rec.ID = id
	} else if err := d.store.Records.UpdateRecord(ctx, rec); err != nil {
		return res, fmt.Errorf("failed to save record: %w", err)
	}

	res = d.list.Apply(rec)

	if err := d.publisher.Publish(ctx, realtime.RecordChanged(op, rec)); err != nil {
		// 通知是尽力而为，记录已保存
		d.logger.Warn("Failed to publish record change",
			zap.String("record_id", rec.ID),
			zap.Error(err),
		)
	}

	d.logger.Info("Record submitted",
		zap.String("user_id", userID),
		zap.String("record_id", rec.ID),
		zap.String("locality", rec.LocalityName),
		zap.String("op", string(op)),
	)
	return res, nil
}

// storedLocality 存储中记录当前所属辖区名；辖区已不存在时为空（非管理员不可访问）
func (d *Dashboard) storedLocality(ctx context.Context, id string) (string, error) {
	row, err := d.store.Records.GetRecordRow(ctx, id)
	if err != nil {
		return "", err
	}
	localityID := row.LocalityID()
	if localityID == "" {
		return row.LocalityName(), nil
	}
	loc, err := d.store.Localities.GetLocalityByID(ctx, localityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve locality: %w", err)
	}
	return loc.Name, nil
}

func validateRecord(rec domain.Record) error {
	if rec.LocalityName == "" {
		return fmt.Errorf("%w: locality is required", ErrInvalidRecord)
	}
	if rec.Cycle == "" {
		return fmt.Errorf("%w: cycle is required", ErrInvalidRecord)
	}
	week, err := strconv.Atoi(rec.EpidemiologicalWeek)
	if err != nil || week < 1 || week > 53 {
		return fmt.Errorf("%w: epidemiological week must be 1-53", ErrInvalidRecord)
	}

	start, err := time.Parse("2006-01-02", rec.StartDate)
	if err != nil {
		return fmt.Errorf("%w: invalid start date %q", ErrInvalidRecord, rec.StartDate)
	}
	end, err := time.Parse("2006-01-02", rec.EndDate)
	if err != nil {
		return fmt.Errorf("%w: invalid end date %q", ErrInvalidRecord, rec.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidRecord)
	}
	return nil
}
