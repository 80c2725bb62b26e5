package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/replaystore/internal/domain/model"
)

// replayColumns — список столбцов таблицы replays для SELECT-запросов.
const replayColumns = `id, title, description, category_id, user_id,
	league, players, expansion_pack, protoss, terran, zerg,
	status, replay_file, game_length, version, average_rating,
	created_at, expires_at, updated_at`

// searchOrderBy — стабильный порядок выборок: новые первыми, при равенстве — по id.
const searchOrderBy = "ORDER BY created_at DESC, id DESC"

// rowScanner — общий интерфейс pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReplayRepository — реализация хранилища записей через pgx.
type ReplayRepository struct {
	db DBTX
}

// NewReplayRepository создаёт PostgreSQL-репозиторий реплеев.
func NewReplayRepository(db DBTX) *ReplayRepository {
	return &ReplayRepository{db: db}
}

// Create вставляет новую запись. Заполняет UpdatedAt из БД.
func (r *ReplayRepository) Create(ctx context.Context, rp *model.Replay) error {
	query := `
		INSERT INTO replays (id, title, description, category_id, user_id,
			league, players, expansion_pack, protoss, terran, zerg,
			status, replay_file, game_length, version, average_rating,
			created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		rp.ID, rp.Title, rp.Description, rp.CategoryID, rp.OwnerID,
		string(rp.League), string(rp.Players), string(rp.ExpansionPack),
		rp.Protoss, rp.Terran, rp.Zerg,
		string(rp.Status), nullableString(rp.ReplayFile), rp.GameLength, rp.Version, rp.AverageRating,
		rp.CreatedAt, rp.ExpiresAt,
	).Scan(&rp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: реплей с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания реплея: %w", err)
	}
	return nil
}

// GetByID возвращает реплей по UUID или ErrNotFound.
func (r *ReplayRepository) GetByID(ctx context.Context, id string) (*model.Replay, error) {
	if len(validUUIDs([]string{id})) == 0 {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM replays WHERE id = $1`, replayColumns)

	rp, err := scanReplay(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения реплея: %w", err)
	}
	return rp, nil
}

// GetByIDs загружает записи по набору id в стабильном порядке created_at DESC, id DESC.
// Отсутствующие id молча исключаются.
func (r *ReplayRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Replay, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM replays WHERE id = ANY($1::uuid[]) %s`, replayColumns, searchOrderBy)
	result, err := r.queryReplays(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки реплеев по id: %w", err)
	}
	return result, nil
}

// Search выполняет поиск реплеев по FilterSpec с пагинацией.
// Возвращает (страница, общее количество совпадений, ошибка).
func (r *ReplayRepository) Search(ctx context.Context, spec model.FilterSpec, now time.Time) ([]*model.Replay, int, error) {
	where, args := buildSearchWhere(spec, now, 1)
	argNum := len(args) + 1

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM replays %s %s LIMIT $%d OFFSET $%d`,
		replayColumns, where, searchOrderBy, argNum, argNum+1,
	)
	dataArgs := append(append([]any{}, args...), model.PageSize, spec.Offset())

	result, err := r.queryReplays(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка поиска реплеев: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM replays %s`, where)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта реплеев: %w", err)
	}

	return result, total, nil
}

// ListCleanupCandidates возвращает не отклонённые записи, созданные раньше createdBefore.
func (r *ReplayRepository) ListCleanupCandidates(ctx context.Context, createdBefore time.Time) ([]*model.Replay, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM replays WHERE status <> $1 AND created_at < $2 %s`,
		replayColumns, searchOrderBy,
	)
	result, err := r.queryReplays(ctx, query, string(model.StatusRejected), createdBefore)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки кандидатов на очистку: %w", err)
	}
	return result, nil
}

// UpdateStatus безусловно устанавливает статус (last-writer-wins).
func (r *ReplayRepository) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	return r.execSingle(ctx, "ошибка обновления статуса",
		`UPDATE replays SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
}

// MarkRejected переводит запись в rejected и отвязывает артефакт.
func (r *ReplayRepository) MarkRejected(ctx context.Context, id string) error {
	return r.execSingle(ctx, "ошибка отклонения реплея",
		`UPDATE replays SET status = $2, replay_file = NULL, updated_at = NOW() WHERE id = $1`,
		id, string(model.StatusRejected))
}

// UpdateGameDetails сохраняет длительность игры и версию движка.
func (r *ReplayRepository) UpdateGameDetails(ctx context.Context, id string, gameLength int, version string) error {
	return r.execSingle(ctx, "ошибка обновления деталей игры",
		`UPDATE replays SET game_length = $2, version = $3, updated_at = NOW() WHERE id = $1`,
		id, gameLength, version)
}

// UpdateAverageRating сохраняет пересчитанную среднюю оценку.
func (r *ReplayRepository) UpdateAverageRating(ctx context.Context, id string, rating float64) error {
	return r.execSingle(ctx, "ошибка обновления рейтинга",
		`UPDATE replays SET average_rating = $2, updated_at = NOW() WHERE id = $1`,
		id, rating)
}

// CountByOwnerSince возвращает количество записей владельца, созданных не раньше since.
func (r *ReplayRepository) CountByOwnerSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM replays WHERE user_id = $1 AND created_at >= $2`,
		ownerID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта загрузок владельца: %w", err)
	}
	return n, nil
}

// execSingle выполняет UPDATE одной записи; 0 затронутых строк — ErrNotFound.
func (r *ReplayRepository) execSingle(ctx context.Context, errMsg, query string, id string, args ...any) error {
	if len(validUUIDs([]string{id})) == 0 {
		return ErrNotFound
	}

	tag, err := r.db.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", errMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReplayRepository) queryReplays(ctx context.Context, query string, args ...any) ([]*model.Replay, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*model.Replay
	for rows.Next() {
		rp, err := scanReplay(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования реплея: %w", err)
		}
		result = append(result, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

func scanReplay(row rowScanner) (*model.Replay, error) {
	var rp model.Replay
	var league, players, expansion, st string
	var replayFile *string
	err := row.Scan(
		&rp.ID, &rp.Title, &rp.Description, &rp.CategoryID, &rp.OwnerID,
		&league, &players, &expansion, &rp.Protoss, &rp.Terran, &rp.Zerg,
		&st, &replayFile, &rp.GameLength, &rp.Version, &rp.AverageRating,
		&rp.CreatedAt, &rp.ExpiresAt, &rp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rp.League = model.League(league)
	rp.Players = model.PlayerFormat(players)
	rp.ExpansionPack = model.ExpansionPack(expansion)
	rp.Status = model.Status(st)
	if replayFile != nil {
		rp.ReplayFile = *replayFile
	}
	return &rp, nil
}

// buildSearchWhere строит WHERE-условие и аргументы для поиска реплеев.
// SQL-эквивалент model.FilterSpec.Match.
// startArg — номер первого $-параметра (для корректной нумерации).
//
//nolint:cyclop // сложность обусловлена количеством фильтров
func buildSearchWhere(spec model.FilterSpec, now time.Time, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Текстовый поиск: title OR description OR имя файла (без каталога хранилища)
	if spec.Query != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(title ILIKE $%[1]d OR description ILIKE $%[1]d OR regexp_replace(COALESCE(replay_file, ''), '^.*/', '') ILIKE $%[1]d)",
			argNum))
		args = append(args, "%"+escapeLike(spec.Query)+"%")
		argNum++
	}

	if len(spec.Statuses) > 0 {
		statuses := make([]string, len(spec.Statuses))
		for i, s := range spec.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argNum))
		args = append(args, statuses)
		argNum++
	}

	if spec.League != "" {
		conditions = append(conditions, fmt.Sprintf("league = $%d", argNum))
		args = append(args, string(spec.League))
		argNum++
	}

	if spec.Players != "" {
		conditions = append(conditions, fmt.Sprintf("players = $%d", argNum))
		args = append(args, string(spec.Players))
		argNum++
	}

	if spec.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argNum))
		args = append(args, spec.CategoryID)
		argNum++
	}

	if spec.ExpansionPack != "" {
		conditions = append(conditions, fmt.Sprintf("expansion_pack = $%d", argNum))
		args = append(args, string(spec.ExpansionPack))
		argNum++
	}

	if value, exact, ok := spec.RatingFilter(); ok {
		if exact {
			conditions = append(conditions, "average_rating = 0")
		} else {
			conditions = append(conditions, fmt.Sprintf("average_rating >= $%d", argNum))
			args = append(args, value)
			argNum++
		}
	}

	if !spec.IncludeExpired {
		conditions = append(conditions, fmt.Sprintf("expires_at > $%d", argNum))
		args = append(args, now)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// escapeLike экранирует спецсимволы LIKE, чтобы запрос искал подстроку буквально.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
