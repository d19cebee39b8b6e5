package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Upstream profile tables are owned by the CRUD service; the assessment
// table is created by `migrate`. Startup fails fast when any is missing.
var requiredColumns = []struct {
	table  string
	column string
}{
	{table: "HealthProfile", column: "userId"},
	{table: "HealthProfile", column: "height"},
	{table: "HealthProfile", column: "currentWeight"},
	{table: "HealthProfile", column: "prePregnancyWeight"},
	{table: "HealthProfile", column: "age"},
	{table: "HealthProfile", column: "isSmoking"},
	{table: "HealthProfile", column: "isDrinking"},
	{table: "PregnancyInfo", column: "lastMenstrualPeriod"},
	{table: "PregnancyInfo", column: "dueDate"},
	{table: "HealthRiskAssessment", column: "healthProfileId"},
	{table: "HealthRiskAssessment", column: "aiSource"},
	{table: "HealthRiskAssessment", column: "aiFallbackReason"},
	{table: "HealthRiskAssessment", column: "healthDataHash"},
	{table: "HealthRiskAssessment", column: "hashVersion"},
}

func ValidateRuntimeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; run momcare-api migrate",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND table_name = $1
		     AND column_name = $2
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
