package cards

import (
	"context"
	"database/sql"
	"errors"

	"tarot-api/internal/apperr"
	"tarot-api/internal/db"
)

// Repository reads the cards and card_translations tables. Lookups in a
// language without a translation row fall back to the default language
// instead of failing.
type Repository struct {
	db          *sql.DB
	defaultLang string
}

func NewRepository(db *sql.DB, defaultLang string) *Repository {
	if defaultLang == "" {
		defaultLang = "hu"
	}
	return &Repository{db: db, defaultLang: defaultLang}
}

func (r *Repository) GetCard(ctx context.Context, key, lang string) (CardData, error) {
	if lang == "" {
		lang = r.defaultLang
	}

	var card CardData
	err := r.db.QueryRowContext(ctx, `
		SELECT c.key, t.lang, t.name, t.description
		FROM cards c
		JOIN card_translations t ON t.card_id = c.id
		WHERE c.key = $1 AND t.lang IN ($2, $3)
		ORDER BY CASE WHEN t.lang = $2 THEN 0 ELSE 1 END
		LIMIT 1
	`, key, lang, r.defaultLang).Scan(&card.Key, &card.Lang, &card.Name, &card.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CardData{}, apperr.ErrCardNotFound
		}
		return CardData{}, db.StoreError("query card", err)
	}

	return card, nil
}

func (r *Repository) ListCards(ctx context.Context, lang string) ([]CardData, error) {
	if lang == "" {
		lang = r.defaultLang
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (c.key) c.key, t.lang, t.name, t.description
		FROM cards c
		JOIN card_translations t ON t.card_id = c.id
		WHERE t.lang IN ($1, $2)
		ORDER BY c.key, CASE WHEN t.lang = $1 THEN 0 ELSE 1 END
	`, lang, r.defaultLang)
	if err != nil {
		return nil, db.StoreError("query cards", err)
	}
	defer rows.Close()

	cards := make([]CardData, 0)
	for rows.Next() {
		var card CardData
		if err := rows.Scan(&card.Key, &card.Lang, &card.Name, &card.Description); err != nil {
			return nil, db.StoreError("scan card", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, db.StoreError("iterate cards", err)
	}

	return cards, nil
}
