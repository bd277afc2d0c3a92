package store

import (
	"testing"
	"time"
)

func TestPostgresConfig_Validate(t *testing.T) {
	valid := PostgresConfig{
		URL:             "postgres://localhost/waver",
		PingTimeout:     2 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
	}

	tests := []struct {
		name    string
		mutate  func(*PostgresConfig)
		wantErr bool
	}{
		{"valid", func(*PostgresConfig) {}, false},
		{"missing url", func(c *PostgresConfig) { c.URL = "" }, true},
		{"zero ping timeout", func(c *PostgresConfig) { c.PingTimeout = 0 }, true},
		{"no open conns", func(c *PostgresConfig) { c.MaxOpenConns = 0 }, true},
		{"idle above open", func(c *PostgresConfig) { c.MaxIdleConns = 11 }, true},
		{"negative lifetime", func(c *PostgresConfig) { c.ConnMaxLifetime = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProductSearchSQL(t *testing.T) {
	got := productSearchSQL([]string{"product_name", "nombre"})
	want := `SELECT * FROM "Productos" WHERE "product_name" ILIKE $1 OR "nombre" ILIKE $1 LIMIT 10`
	if got != want {
		t.Errorf("productSearchSQL() =\n%s\nwant\n%s", got, want)
	}
}
