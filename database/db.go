package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tradielink/tradielink/config"
	"github.com/tradielink/tradielink/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache init error, continuing without cache: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createUserTable(db)
	if err != nil {
		return nil, err
	}
	err = createProjectTable(db)
	if err != nil {
		return nil, err
	}
	err = createQuoteTable(db)
	if err != nil {
		return nil, err
	}
	err = createPaymentTable(db)
	if err != nil {
		return nil, err
	}
	err = createEscrowTable(db)
	if err != nil {
		return nil, err
	}
	err = createAffiliateEarningTable(db)
	if err != nil {
		return nil, err
	}
	err = createReviewTable(db)
	if err != nil {
		return nil, err
	}
	err = createWithdrawalTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, used to translate constraint hits into Conflict responses.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL CHECK (role IN ('owner', 'tradie')),
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email_address TEXT NOT NULL,
			phone_number TEXT,
			parent_tradie_id TEXT REFERENCES users(user_id),
			balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating users table: %v", err)
	}
	return err
}

func createProjectTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id SERIAL PRIMARY KEY,
			project_id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL REFERENCES users(user_id),
			title TEXT NOT NULL,
			description TEXT,
			category_id TEXT,
			profession_id TEXT,
			location TEXT,
			contact_email TEXT,
			contact_phone TEXT,
			status TEXT NOT NULL,
			agreed_quote_id TEXT,
			agreed_tradie_id TEXT,
			agreed_price DECIMAL(20,2),
			escrow_amount DECIMAL(20,2),
			completion_date TIMESTAMP,
			protection_end_date TIMESTAMP,
			release_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating projects table: %v", err)
	}
	return err
}

func createQuoteTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quotes (
			id SERIAL PRIMARY KEY,
			quote_id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL REFERENCES projects(project_id),
			tradie_id TEXT NOT NULL REFERENCES users(user_id),
			price DECIMAL(20,2) NOT NULL,
			counter_price DECIMAL(20,2),
			description TEXT,
			status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS quotes_one_accepted_per_project
			ON quotes (project_id) WHERE status = 'accepted';
	`)
	if err != nil {
		log.Printf("Error creating quotes table: %v", err)
	}
	return err
}

func createPaymentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL REFERENCES projects(project_id),
			quote_id TEXT NOT NULL REFERENCES quotes(quote_id),
			payer_id TEXT NOT NULL REFERENCES users(user_id),
			tradie_id TEXT NOT NULL REFERENCES users(user_id),
			amount DECIMAL(20,2) NOT NULL,
			currency TEXT NOT NULL,
			provider TEXT NOT NULL,
			provider_ref TEXT,
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
			hash TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS payments_one_completed_per_project
			ON payments (project_id) WHERE status = 'completed';
		CREATE INDEX IF NOT EXISTS payments_provider_ref_idx
			ON payments (provider, provider_ref);
	`)
	if err != nil {
		log.Printf("Error creating payments table: %v", err)
	}
	return err
}

func createEscrowTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS escrow_accounts (
			id SERIAL PRIMARY KEY,
			escrow_id TEXT NOT NULL UNIQUE,
			payment_id TEXT NOT NULL UNIQUE REFERENCES payments(payment_id),
			project_id TEXT NOT NULL REFERENCES projects(project_id),
			tradie_id TEXT NOT NULL REFERENCES users(user_id),
			parent_tradie_id TEXT REFERENCES users(user_id),
			gross_amount DECIMAL(20,2) NOT NULL,
			platform_fee DECIMAL(20,2) NOT NULL,
			affiliate_fee DECIMAL(20,2) NOT NULL,
			tax_amount DECIMAL(20,2) NOT NULL,
			net_amount DECIMAL(20,2) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('held', 'released', 'disputed')),
			protection_start_date TIMESTAMP NOT NULL,
			protection_end_date TIMESTAMP NOT NULL,
			released_at TIMESTAMP,
			release_trigger TEXT,
			release_notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS escrow_accounts_due_idx
			ON escrow_accounts (protection_end_date) WHERE status = 'held';
	`)
	if err != nil {
		log.Printf("Error creating escrow_accounts table: %v", err)
	}
	return err
}

func createAffiliateEarningTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS affiliate_earnings (
			id SERIAL PRIMARY KEY,
			earning_id TEXT NOT NULL UNIQUE,
			escrow_id TEXT NOT NULL UNIQUE REFERENCES escrow_accounts(escrow_id),
			parent_tradie_id TEXT NOT NULL REFERENCES users(user_id),
			child_tradie_id TEXT NOT NULL REFERENCES users(user_id),
			amount DECIMAL(20,2) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating affiliate_earnings table: %v", err)
	}
	return err
}

func createReviewTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id SERIAL PRIMARY KEY,
			review_id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL UNIQUE REFERENCES projects(project_id),
			owner_id TEXT NOT NULL REFERENCES users(user_id),
			tradie_id TEXT NOT NULL REFERENCES users(user_id),
			rating INT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating reviews table: %v", err)
	}
	return err
}

func createWithdrawalTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS withdrawals (
			id SERIAL PRIMARY KEY,
			withdrawal_id TEXT NOT NULL UNIQUE,
			tradie_id TEXT NOT NULL REFERENCES users(user_id),
			requested_amount DECIMAL(20,2) NOT NULL,
			processing_fee DECIMAL(20,2) NOT NULL DEFAULT 0,
			final_amount DECIMAL(20,2) NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'rejected')),
			reference_number TEXT NOT NULL UNIQUE,
			bank_details TEXT,
			notes TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating withdrawals table: %v", err)
	}
	return err
}
