package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/vigilo/vigilo-backend/internal/config"
	"github.com/vigilo/vigilo-backend/internal/database"
	"github.com/vigilo/vigilo-backend/internal/logger"
	"github.com/vigilo/vigilo-backend/internal/model"
	"github.com/vigilo/vigilo-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	evaluatorRepo := repository.NewEvaluatorRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Evaluator ===")

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Email
	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	// Organization ID
	fmt.Print("Enter Organization ID (default 1): ")
	orgIDStr, _ := reader.ReadString('\n')
	orgIDStr = strings.TrimSpace(orgIDStr)
	orgID := 1
	if orgIDStr != "" {
		p, err := strconv.Atoi(orgIDStr)
		if err != nil {
			fmt.Println("Error: Organization ID must be a number")
			return
		}
		orgID = p
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	// Hash Password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	evaluator := &model.Evaluator{
		OrgID:        orgID,
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := evaluatorRepo.CreateEvaluator(ctx, evaluator); err != nil {
		log.Fatal().Err(err).Msg("Failed to create evaluator")
	}

	fmt.Printf("\nSuccess! Evaluator '%s' (%s) created with ID: %d\n", evaluator.Name, evaluator.Email, evaluator.ID)
}
