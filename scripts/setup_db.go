// Applies scripts/init_db.sql to the database in POSTGRES_DSN and verifies
// the expected tables exist.
//
// Usage: go run scripts/setup_db.go
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		fmt.Println("❌ POSTGRES_DSN is not set")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fmt.Printf("❌ Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		os.Exit(1)
	}

	schema, err := os.ReadFile("scripts/init_db.sql")
	if err != nil {
		fmt.Printf("❌ Failed to read schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🗄️  Applying schema...")
	if _, err := db.Exec(string(schema)); err != nil {
		fmt.Printf("❌ Failed to apply schema: %v\n", err)
		os.Exit(1)
	}

	for _, table := range []string{"users", "projects", "memberships", "tasks"} {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			table,
		).Scan(&exists)
		if err != nil || !exists {
			fmt.Printf("❌ Table %q missing after setup\n", table)
			os.Exit(1)
		}
		fmt.Printf("✅ Table %q ready\n", table)
	}

	fmt.Println("🎉 Database setup complete")
}
