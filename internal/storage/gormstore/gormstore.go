package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/storage"
)

// Store is a GORM-backed implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

type userModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"size:255;not null;uniqueIndex"`
	Password  string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type conversationModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	UserID         int64     `gorm:"not null;index:idx_conversations_user_sport,priority:1"`
	User           userModel `gorm:"constraint:OnDelete:CASCADE"`
	Message        string    `gorm:"type:text;not null"`
	Response       string    `gorm:"type:text;not null"`
	Sport          string    `gorm:"size:100;not null;index:idx_conversations_user_sport,priority:2"`
	ConversationID int64     `gorm:"column:conversation_id;not null;index:idx_conversations_conversation_id"`
	Timestamp      time.Time `gorm:"column:timestamp;not null;index:idx_conversations_timestamp"`
}

func (conversationModel) TableName() string { return "conversations" }

const (
	usersTable         = "users"
	conversationsTable = "conversations"
)

// NewStore opens the database described by cfg.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger(),
		TranslateError: true,
		NowFunc:        func() time.Time { return now() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "database handle")
		}
		// One connection serializes sqlite writers, including Atomic blocks.
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info().Str("component", "store").Str("driver", db.Dialector.Name()).Msg("database opened")
	return &Store{db: db}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// now is UTC with microsecond precision so values round-trip through every dialect.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userModel{}, &conversationModel{}); err != nil {
		return apperr.Storage(err, "migrate")
	}
	return nil
}

// Ping checks connectivity and the presence of both tables.
func (s *Store) Ping(ctx context.Context) (storage.HealthStatus, error) {
	status := storage.HealthStatus{Tables: map[string]bool{}}
	db := s.db.WithContext(ctx)
	if err := db.Exec("SELECT 1").Error; err != nil {
		return status, apperr.Storage(err, "ping")
	}
	status.Connected = true
	migrator := db.Migrator()
	status.Tables[usersTable] = migrator.HasTable(usersTable)
	status.Tables[conversationsTable] = migrator.HasTable(conversationsTable)
	return status, nil
}

// Atomic runs fn inside a transaction. On postgres the conversations table is
// locked against concurrent writers so a max-based thread id cannot be handed
// out twice.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("LOCK TABLE conversations IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return apperr.Storage(err, "lock conversations")
			}
		}
		return fn(&Store{db: tx})
	})
}

// CreateUser stores a new user record and fills its ID and CreatedAt.
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	model := userModel{
		Username:  user.Username,
		Password:  user.Password,
		CreatedAt: user.CreatedAt,
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now()
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return apperr.Storage(err, "create user")
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "get user by username")
	}
	return toUser(model), nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*storage.User, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFoundOr(err, "get user by id")
	}
	return toUser(model), nil
}

// UpdatePassword overwrites the stored hash of a user.
func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return apperr.Storage(res.Error, "update password")
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MaxThreadID returns the highest thread id, optionally limited to one user.
func (s *Store) MaxThreadID(ctx context.Context, userID *int64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&conversationModel{}).Select("COALESCE(MAX(conversation_id), 0)")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var maxID int64
	if err := q.Row().Scan(&maxID); err != nil {
		return 0, apperr.Storage(err, "max thread id")
	}
	return maxID, nil
}

// InsertTurn appends one turn. A zero Timestamp is set to the current time.
func (s *Store) InsertTurn(ctx context.Context, turn *storage.Turn) error {
	if turn == nil {
		return errors.New("nil turn")
	}
	model := conversationModel{
		UserID:         turn.UserID,
		Message:        turn.Message,
		Response:       turn.Response,
		Sport:          turn.Sport,
		ConversationID: turn.ThreadID,
		Timestamp:      turn.Timestamp.UTC().Truncate(time.Microsecond),
	}
	if turn.Timestamp.IsZero() {
		model.Timestamp = now()
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return apperr.Storage(err, "insert turn")
	}
	turn.ID = model.ID
	turn.Timestamp = model.Timestamp
	return nil
}

// GroupByThread returns the user's turns partitioned by thread, newest thread
// first and each thread in chronological order.
func (s *Store) GroupByThread(ctx context.Context, userID int64, sport string) ([]storage.Thread, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if sport != "" {
		q = q.Where("sport = ?", sport)
	}
	var models []conversationModel
	if err := q.Order("conversation_id DESC").Order(`"timestamp" ASC`).Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperr.Storage(err, "group by thread")
	}

	threads := make([]storage.Thread, 0)
	for _, model := range models {
		if n := len(threads); n == 0 || threads[n-1].ID != model.ConversationID {
			threads = append(threads, storage.Thread{ID: model.ConversationID})
		}
		last := &threads[len(threads)-1]
		last.Turns = append(last.Turns, toTurn(model))
	}
	return threads, nil
}

// Search matches term case-insensitively against message or response.
// SQLite's LOWER only folds ASCII, so on sqlite the match runs in Go over the
// user's turns, newest first, until SearchLimit hits are found.
func (s *Store) Search(ctx context.Context, userID int64, term, sport string) ([]storage.Turn, error) {
	q := s.db.WithContext(ctx).Model(&conversationModel{}).Where("user_id = ?", userID)
	if sport != "" {
		q = q.Where("sport = ?", sport)
	}
	q = q.Order(`"timestamp" DESC`).Order("id DESC")

	if s.db.Dialector.Name() != "sqlite" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		var models []conversationModel
		err := q.Where(`(LOWER(message) LIKE ? ESCAPE '\' OR LOWER(response) LIKE ? ESCAPE '\')`, pattern, pattern).
			Limit(storage.SearchLimit).Find(&models).Error
		if err != nil {
			return nil, apperr.Storage(err, "search turns")
		}
		return toTurns(models), nil
	}

	rows, err := q.Rows()
	if err != nil {
		return nil, apperr.Storage(err, "search turns")
	}
	defer rows.Close()

	needle := strings.ToLower(term)
	found := make([]storage.Turn, 0, storage.SearchLimit)
	for len(found) < storage.SearchLimit && rows.Next() {
		var model conversationModel
		if err := s.db.ScanRows(rows, &model); err != nil {
			return nil, apperr.Storage(err, "scan turn")
		}
		if containsFold(model.Message, needle) || containsFold(model.Response, needle) {
			found = append(found, toTurn(model))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage(err, "search turns")
	}
	return found, nil
}

func containsFold(text, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(text), lowerNeedle)
}

// ListTurns returns every turn of the user in chronological order.
func (s *Store) ListTurns(ctx context.Context, userID int64) ([]storage.Turn, error) {
	var models []conversationModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(`"timestamp" ASC`).Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperr.Storage(err, "list turns")
	}
	return toTurns(models), nil
}

// DeleteTurn removes one turn owned by userID. It reports false with
// apperr.ErrUnauthorized when the turn belongs to someone else, and false with
// no error when it does not exist.
func (s *Store) DeleteTurn(ctx context.Context, turnID, userID int64) (bool, error) {
	if err := s.checkTurnOwner(ctx, turnID, userID); err != nil {
		return false, ignoreNotFound(err)
	}
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", turnID, userID).Delete(&conversationModel{})
	if res.Error != nil {
		return false, apperr.Storage(res.Error, "delete turn")
	}
	return res.RowsAffected > 0, nil
}

// DeleteThread removes every turn of the thread owned by userID.
func (s *Store) DeleteThread(ctx context.Context, threadID, userID int64) (bool, error) {
	db := s.db.WithContext(ctx)
	var owned int64
	if err := db.Model(&conversationModel{}).Where("conversation_id = ? AND user_id = ?", threadID, userID).Count(&owned).Error; err != nil {
		return false, apperr.Storage(err, "count thread")
	}
	if owned == 0 {
		var foreign int64
		if err := db.Model(&conversationModel{}).Where("conversation_id = ?", threadID).Count(&foreign).Error; err != nil {
			return false, apperr.Storage(err, "count thread")
		}
		if foreign > 0 {
			return false, apperr.ErrUnauthorized
		}
		return false, nil
	}
	res := db.Where("conversation_id = ? AND user_id = ?", threadID, userID).Delete(&conversationModel{})
	if res.Error != nil {
		return false, apperr.Storage(res.Error, "delete thread")
	}
	return res.RowsAffected > 0, nil
}

// UpdateTurnMessage replaces the message text of a turn owned by userID. The
// response is left as it was. Ownership is reported like DeleteTurn.
func (s *Store) UpdateTurnMessage(ctx context.Context, turnID, userID int64, message string) (bool, error) {
	if err := s.checkTurnOwner(ctx, turnID, userID); err != nil {
		return false, ignoreNotFound(err)
	}
	res := s.db.WithContext(ctx).Model(&conversationModel{}).
		Where("id = ? AND user_id = ?", turnID, userID).
		Update("message", message)
	if res.Error != nil {
		return false, apperr.Storage(res.Error, "update turn")
	}
	return res.RowsAffected > 0, nil
}

// Stats runs three independent aggregates. They are not read in one
// transaction and may disagree momentarily.
func (s *Store) Stats(ctx context.Context, userID int64, since time.Time) (*storage.Stats, error) {
	stats := &storage.Stats{BySport: []storage.SportCount{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&conversationModel{}).
			Where("user_id = ?", userID).
			Count(&stats.Total).Error
	})
	g.Go(func() error {
		var rows []struct {
			Sport string
			Total int64
		}
		err := s.db.WithContext(gctx).Model(&conversationModel{}).
			Select("sport, COUNT(*) AS total").
			Where("user_id = ?", userID).
			Group("sport").
			Order("total DESC").Order("sport ASC").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		bySport := make([]storage.SportCount, 0, len(rows))
		for _, row := range rows {
			bySport = append(bySport, storage.SportCount{Sport: row.Sport, Count: row.Total})
		}
		stats.BySport = bySport
		return nil
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&conversationModel{}).
			Where(`user_id = ? AND "timestamp" >= ?`, userID, since.UTC()).
			Count(&stats.Recent).Error
	})

	if err := g.Wait(); err != nil {
		return nil, apperr.Storage(err, "user stats")
	}
	return stats, nil
}

// PurgeOlderThan deletes every turn with a timestamp strictly before cutoff,
// for all users.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where(`"timestamp" < ?`, cutoff.UTC()).Delete(&conversationModel{})
	if res.Error != nil {
		return 0, apperr.Storage(res.Error, "purge turns")
	}
	return res.RowsAffected, nil
}

func (s *Store) checkTurnOwner(ctx context.Context, turnID, userID int64) error {
	var model conversationModel
	err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", turnID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		return apperr.Storage(err, "lookup turn")
	}
	if model.UserID != userID {
		return apperr.ErrUnauthorized
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return apperr.Storage(err, msg)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func toUser(model userModel) *storage.User {
	return &storage.User{
		ID:        model.ID,
		Username:  model.Username,
		Password:  model.Password,
		CreatedAt: model.CreatedAt,
	}
}

func toTurn(model conversationModel) storage.Turn {
	return storage.Turn{
		ID:        model.ID,
		UserID:    model.UserID,
		Message:   model.Message,
		Response:  model.Response,
		Sport:     model.Sport,
		ThreadID:  model.ConversationID,
		Timestamp: model.Timestamp,
	}
}

func toTurns(models []conversationModel) []storage.Turn {
	turns := make([]storage.Turn, 0, len(models))
	for _, model := range models {
		turns = append(turns, toTurn(model))
	}
	return turns
}
