package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"gocatalog/internal/pkg/database"
	"gocatalog/internal/pkg/logger"
	"gocatalog/migrations"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("⚠️ Aviso: Arquivo .env não encontrado. Carregando configs apenas do ambiente do sistema.")
	}

	var (
		dsn     string
		dir     string
		timeout time.Duration
	)
	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "string de conexão PostgreSQL (padrão: DATABASE_URL)")
	flag.StringVar(&dir, "dir", "", "diretório de migrações no disco; vazio usa as migrações embutidas")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "tempo máximo para aplicar as migrações")
	flag.Parse()

	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))

	if dsn == "" {
		log.Fatal("Configuração inválida.", errors.New("DATABASE_URL (ou -dsn) é obrigatório"))
	}

	db, err := database.NewPostgresDB(dsn)
	if err != nil {
		log.Fatal("Falha ao conectar ao banco de dados.", err)
	}
	defer db.Close()

	if dir == "" {
		goose.SetBaseFS(migrations.FS)
		dir = "."
	}
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("Dialeto do goose inválido.", err)
	}

	command, args := "up", []string(nil)
	if flag.NArg() > 0 {
		command, args = flag.Arg(0), flag.Args()[1:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		log.Fatal("Migração falhou.", fmt.Errorf("goose %s: %w", command, err))
	}
	log.Info("Migração concluída.", map[string]interface{}{"command": command})
}
