package infrastructure

import (
	"database/sql"
)

// Lookup services over the tables owned by the accounts/categories
// subsystems. The engine only ever asks whether a referenced row exists for
// the calling user; everything else about those subsystems stays outside.

type AccountLookupService struct {
	db *sql.DB
}

func NewAccountLookupService(db *sql.DB) *AccountLookupService {
	return &AccountLookupService{db: db}
}

func (s *AccountLookupService) DoesAccountExist(accountID string, userID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1 AND user_id = $2)"
	err := s.db.QueryRow(query, accountID, userID).Scan(&exists)
	return exists, err
}

type CategoryLookupService struct {
	db *sql.DB
}

func NewCategoryLookupService(db *sql.DB) *CategoryLookupService {
	return &CategoryLookupService{db: db}
}

func (s *CategoryLookupService) DoesCategoryExist(categoryID string, userID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)"
	err := s.db.QueryRow(query, categoryID, userID).Scan(&exists)
	return exists, err
}

func (s *CategoryLookupService) DoesSubcategoryExist(subcategoryID string, userID string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM subcategories WHERE id = $1 AND user_id = $2)"
	err := s.db.QueryRow(query, subcategoryID, userID).Scan(&exists)
	return exists, err
}
