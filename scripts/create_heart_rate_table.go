package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"pulse-link/internal/config"
	"pulse-link/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS heart_rate_data (
    id         BIGSERIAL PRIMARY KEY,
    heart_rate INTEGER NOT NULL,
    timestamp  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_heart_rate_data_timestamp
    ON heart_rate_data (timestamp);
`

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 执行 SQL
	if _, err := db.Exec(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute SQL: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ heart_rate_data table created successfully!")
}
