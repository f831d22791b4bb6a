package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"AgentLink-Chain/deploy/migrations"
	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
)

// MySQLStore 使用 MySQL 记录会话归档。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initSchema 按文件名顺序执行内嵌的 SQL 迁移脚本。
func (s *MySQLStore) initSchema() error {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移脚本失败")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := migrations.Files.ReadFile(name)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移脚本失败")
		}
		for _, stmt := range strings.Split(string(script), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := s.db.Exec(stmt); err != nil {
				return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行迁移脚本 "+name+" 失败")
			}
		}
	}
	return nil
}

// Append 实现 Store 接口。
func (s *MySQLStore) Append(ctx context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := record.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}

	var metadata []byte
	if len(record.Metadata) > 0 {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化元数据失败")
		}
		metadata = encoded
	}

	const query = `INSERT INTO message_archive
        (id, agent, direction, msg_type, content, metadata, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		id, record.Agent, string(record.Direction), string(record.Type),
		record.Content, metadata, createdAt,
	); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入归档记录失败")
	}
	return nil
}

// ListRecent 返回最近的归档记录，新记录在前。
func (s *MySQLStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, agent, direction, msg_type, content, metadata, created_at
        FROM message_archive ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询归档记录失败")
	}
	defer rows.Close()

	results := make([]*Record, 0, limit)
	for rows.Next() {
		var record Record
		var direction, msgType string
		var metadata sql.NullString
		if err := rows.Scan(&record.ID, &record.Agent, &direction, &msgType,
			&record.Content, &metadata, &record.CreatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档记录失败")
		}
		record.Direction = Direction(direction)
		record.Type = message.Type(msgType)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &record.Metadata); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析归档元数据失败")
			}
		}
		results = append(results, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历归档记录失败")
	}
	return results, nil
}

// Close 关闭数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ensure interface compliance at compile time
var _ Store = (*MySQLStore)(nil)
