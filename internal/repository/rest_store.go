package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RestStore 托管 Postgres 的 REST 网关（PostgREST 风格）客户端
// 路由：/rest/v1/<table>?<col>=eq.<value>
// 认证：apikey + Authorization: Bearer
type RestStore struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewRestStore 创建 REST 后端
// 不在客户端重试：每次解析每层至多访问一次，重试由调用方的刷新负责
func NewRestStore(baseURL, apiKey string, logger *zap.Logger) *RestStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(15*time.Second).
		SetRetryCount(0).
		SetLogger(restyLogger{sugar: logger.Sugar()}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("apikey", apiKey).SetAuthToken(apiKey)
	}

	return &RestStore{httpClient: client, logger: logger}
}

// restyLogger resty 内部日志转到 zap
type restyLogger struct {
	sugar *zap.SugaredLogger
}

var _ resty.Logger = restyLogger{}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.sugar.Errorf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.sugar.Warnf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.sugar.Debugf(format, v...) }

var (
	_ RecordsRepository      = (*RestStore)(nil)
	_ LocalitiesRepository   = (*RestStore)(nil)
	_ UsersRepository        = (*RestStore)(nil)
	_ AccessGrantsRepository = (*RestStore)(nil)
	_ AccessLevelsRepository = (*RestStore)(nil)
)

// AsStore 以 Store 形式暴露
func (s *RestStore) AsStore() *Store {
	return &Store{Records: s, Localities: s, Users: s, Grants: s, AccessLevels: s}
}

// REST 行结构（列名即 JSON key）
type restLocality struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type restUser struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	Role          string  `json:"role"`
	AccessLevelID *string `json:"access_level_id"`
	Active        bool    `json:"active"`
}

type restGrant struct {
	UserID     string `json:"user_id"`
	LocalityID string `json:"locality_id"`
}

type restAccessLevel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
}

func eq(v string) string { return "eq." + v }

// check 统一处理传输错误和非 2xx 状态
func (s *RestStore) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		s.logger.Error("REST store request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if resp.IsError() {
		s.logger.Error("REST store returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 256)),
		)
		return fmt.Errorf("failed to %s: status %d", op, resp.StatusCode())
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ---- records ----

func (s *RestStore) ListRecordRows(ctx context.Context) ([]normalizer.Row, error) {
	var rows []normalizer.Row
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "start_date.asc,id.asc").
		SetResult(&rows).
		Get("/records")
	if err := s.check("list records", resp, err); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetRecordRow GET /records?id=eq.<id>
func (s *RestStore) GetRecordRow(ctx context.Context, id string) (normalizer.Row, error) {
	var rows []normalizer.Row
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("id", eq(id)).
		SetResult(&rows).
		Get("/records")
	if err := s.check("get record", resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return rows[0], nil
}

func recordBody(rec domain.Record) map[string]any {
	row := normalizer.ToRow(rec)
	body := make(map[string]any, len(row))
	for c, v := range row {
		if c == normalizer.ColID {
			continue
		}
		body[c] = columnArg(c, v)
	}
	return body
}

func (s *RestStore) InsertRecord(ctx context.Context, rec domain.Record) (string, error) {
	var created []normalizer.Row
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(recordBody(rec)).
		SetResult(&created).
		Post("/records")
	if err := s.check("insert record", resp, err); err != nil {
		return "", err
	}
	if len(created) == 0 {
		return "", fmt.Errorf("failed to insert record: empty representation")
	}
	id := normalizer.Text(created[0][normalizer.ColID])
	if id == "" {
		return "", fmt.Errorf("failed to insert record: no id returned")
	}
	return id, nil
}

func (s *RestStore) UpdateRecord(ctx context.Context, rec domain.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required for update")
	}
	var updated []normalizer.Row
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", eq(rec.ID)).
		SetBody(recordBody(rec)).
		SetResult(&updated).
		Patch("/records")
	if err := s.check("update record", resp, err); err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// ---- localities ----

func (s *RestStore) queryLocalities(ctx context.Context, op string, params map[string]string) ([]domain.Locality, error) {
	var rows []restLocality
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "id,name,active").
		SetQueryParams(params).
		SetResult(&rows).
		Get("/localities")
	if err := s.check(op, resp, err); err != nil {
		return nil, err
	}
	out := make([]domain.Locality, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Locality{ID: r.ID, Name: r.Name, Active: r.Active})
	}
	return out, nil
}

func (s *RestStore) GetLocalityByName(ctx context.Context, name string) (*domain.Locality, error) {
	ls, err := s.queryLocalities(ctx, "get locality", map[string]string{"name": eq(strings.TrimSpace(name))})
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, fmt.Errorf("locality %q: %w", name, ErrNotFound)
	}
	return &ls[0], nil
}

func (s *RestStore) GetLocalityByID(ctx context.Context, id string) (*domain.Locality, error) {
	ls, err := s.queryLocalities(ctx, "get locality", map[string]string{"id": eq(id)})
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, fmt.Errorf("locality %q: %w", id, ErrNotFound)
	}
	return &ls[0], nil
}

func (s *RestStore) ListLocalities(ctx context.Context) ([]domain.Locality, error) {
	return s.queryLocalities(ctx, "list localities", map[string]string{"order": "name.asc"})
}

// EnsureLocality upsert on_conflict=name
func (s *RestStore) EnsureLocality(ctx context.Context, name string) (*domain.Locality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("locality name is required")
	}

	var rows []restLocality
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "resolution=merge-duplicates,return=representation").
		SetQueryParam("on_conflict", "name").
		SetBody(map[string]any{"name": name, "active": true}).
		SetResult(&rows).
		Post("/localities")
	if err := s.check("ensure locality", resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to ensure locality: empty representation")
	}
	return &domain.Locality{ID: rows[0].ID, Name: rows[0].Name, Active: rows[0].Active}, nil
}

// ---- users / grants / levels ----

func (s *RestStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is empty: %w", ErrNotFound)
	}
	var rows []restUser
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "id,name,role,access_level_id,active").
		SetQueryParam("id", eq(userID)).
		SetResult(&rows).
		Get("/users")
	if err := s.check("get user", resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	r := rows[0]
	u := &domain.User{ID: r.ID, Role: r.Role, Active: r.Active}
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.AccessLevelID != nil {
		u.AccessLevelID = *r.AccessLevelID
	}
	return u, nil
}

func (s *RestStore) ListGrantsByUser(ctx context.Context, userID string) ([]domain.AccessGrant, error) {
	var rows []restGrant
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "user_id,locality_id").
		SetQueryParam("user_id", eq(userID)).
		SetResult(&rows).
		Get("/access_grants")
	if err := s.check("list access grants", resp, err); err != nil {
		return nil, err
	}
	out := make([]domain.AccessGrant, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AccessGrant{UserID: r.UserID, LocalityID: r.LocalityID})
	}
	return out, nil
}

func (s *RestStore) GrantAccess(ctx context.Context, userID, localityID string) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "resolution=ignore-duplicates,return=minimal").
		SetQueryParam("on_conflict", "user_id,locality_id").
		SetBody(restGrant{UserID: userID, LocalityID: localityID}).
		Post("/access_grants")
	return s.check("grant access", resp, err)
}

func (s *RestStore) RevokeAccess(ctx context.Context, userID, localityID string) error {
	var deleted []restGrant
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("user_id", eq(userID)).
		SetQueryParam("locality_id", eq(localityID)).
		SetResult(&deleted).
		Delete("/access_grants")
	if err := s.check("revoke access", resp, err); err != nil {
		return err
	}
	if len(deleted) == 0 {
		return fmt.Errorf("grant %s/%s: %w", userID, localityID, ErrNotFound)
	}
	return nil
}

func (s *RestStore) queryAccessLevels(ctx context.Context, params map[string]string) ([]domain.AccessLevel, error) {
	var rows []restAccessLevel
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "id,name,description,permissions").
		SetQueryParams(params).
		SetResult(&rows).
		Get("/access_levels")
	if err := s.check("list access levels", resp, err); err != nil {
		return nil, err
	}
	out := make([]domain.AccessLevel, 0, len(rows))
	for _, r := range rows {
		l := domain.AccessLevel{ID: r.ID, Name: r.Name, Permissions: r.Permissions}
		if r.Description != nil {
			l.Description = *r.Description
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *RestStore) ListAccessLevels(ctx context.Context) ([]domain.AccessLevel, error) {
	return s.queryAccessLevels(ctx, map[string]string{"order": "name.asc"})
}

func (s *RestStore) GetAccessLevel(ctx context.Context, id string) (*domain.AccessLevel, error) {
	ls, err := s.queryAccessLevels(ctx, map[string]string{"id": eq(id)})
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, fmt.Errorf("access level %s: %w", id, ErrNotFound)
	}
	return &ls[0], nil
}

// Ping 健康检查：GET /localities?limit=1
func (s *RestStore) Ping(ctx context.Context) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("select", "id").
		SetQueryParam("limit", "1").
		Get("/localities")
	if err != nil {
		return fmt.Errorf("failed to ping REST store: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("failed to ping REST store: status %d", resp.StatusCode())
	}
	return nil
}
