package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"printmatch/db"
	"printmatch/internal/dispatch"
	"printmatch/internal/session"
)

const (
	AdminWaitingTable     State = "waiting_for_table"
	AdminWaitingOldColumn State = "waiting_for_old_column"
	AdminWaitingNewColumn State = "waiting_for_new_column"
	AdminWaitingAddTable  State = "waiting_for_table_for_new_column"
	AdminWaitingAddColumn State = "waiting_for_new_column_name"
)

const (
	accessDenied      = "❌ Access denied. This command is only available for administrators."
	adminRenamePrompt = "🔧 Admin: Rename Column\n\nPlease enter the table name:"
	adminAddPrompt    = "🔧 Admin: Add New Column\n\nPlease enter the table name where you want to add a new column:"

	invalidTable = "❌ Invalid table name. Table names should only contain letters, numbers, and underscores, " +
		"and start with a letter or underscore.\n\nPlease enter a valid table name:"
	invalidColumn = "❌ Invalid column name. Column names should only contain letters, numbers, and underscores, " +
		"and start with a letter or underscore.\n\nPlease enter a valid column name:"
)

// schemaAdmin - переименование и добавление колонок. Оба сценария живут
// в одном слоте сессии, доступ проверяет guard машины на каждом шаге.
type schemaAdmin struct {
	catalog StorageInterface
	logger  *slog.Logger
}

func newSchemaAdmin(store session.Store, catalog StorageInterface, admins AdminSet, logger *slog.Logger) *Machine {
	a := &schemaAdmin{catalog: catalog, logger: logger}
	m := newMachine(session.KeyAdmin, "admin process", store, logger).
		on(AdminWaitingTable, a.renameTable, AdminWaitingOldColumn).
		on(AdminWaitingOldColumn, a.oldColumn, AdminWaitingNewColumn).
		on(AdminWaitingNewColumn, a.newColumn, Idle).
		on(AdminWaitingAddTable, a.addTable, AdminWaitingAddColumn).
		on(AdminWaitingAddColumn, a.addColumn, Idle)
	m.guard = admins.Contains
	return m
}

// table - общий шаг выбора таблицы для обоих сценариев
func (a *schemaAdmin) table(ctx context.Context, in Input, next string) Result {
	if !db.ValidIdentifier(in.Text) {
		return stay(dispatch.Text(invalidTable))
	}
	exists, err := a.catalog.TableExists(ctx, in.Text)
	if err != nil {
		a.logger.Error("table check", "table", in.Text, "error", err)
		return reset(dispatch.Text("❌ Error checking table. Please start again with /admin or /admin_add_column."))
	}
	if !exists {
		return stay(dispatch.Text(fmt.Sprintf("❌ Table %q does not exist.\n\n"+
			"Please enter a valid table name or use /cancel_admin to cancel:", in.Text)))
	}
	in.Data["table"] = in.Text
	return advance(dispatch.Text(fmt.Sprintf("✅ Table %q found.\n\n%s", in.Text, next)))
}

func (a *schemaAdmin) renameTable(ctx context.Context, in Input) Result {
	return a.table(ctx, in, "Please enter the current (old) column name to rename:")
}

func (a *schemaAdmin) addTable(ctx context.Context, in Input) Result {
	return a.table(ctx, in, "Please enter the name for the new column:")
}

// columnFree проверяет, что колонки ещё нет; ok=false - шаг уже завершён результатом res
func (a *schemaAdmin) columnFree(ctx context.Context, in Input) (res Result, ok bool) {
	table := in.Data["table"]
	if !db.ValidIdentifier(in.Text) {
		return stay(dispatch.Text(invalidColumn)), false
	}
	exists, err := a.catalog.ColumnExists(ctx, table, in.Text)
	if err != nil {
		a.logger.Error("column check", "table", table, "column", in.Text, "error", err)
		return reset(dispatch.Text("❌ Error checking column. Please start again with /admin or /admin_add_column.")), false
	}
	if exists {
		return stay(dispatch.Text(fmt.Sprintf("❌ Column %q already exists in table %q.\n\n"+
			"Please enter a different column name or use /cancel_admin to cancel:", in.Text, table))), false
	}
	return Result{}, true
}

func (a *schemaAdmin) oldColumn(ctx context.Context, in Input) Result {
	table := in.Data["table"]
	if !db.ValidIdentifier(in.Text) {
		return stay(dispatch.Text(invalidColumn))
	}
	exists, err := a.catalog.ColumnExists(ctx, table, in.Text)
	if err != nil {
		a.logger.Error("column check", "table", table, "column", in.Text, "error", err)
		return reset(dispatch.Text("❌ Error checking column. Please start again with /admin."))
	}
	if !exists {
		return stay(dispatch.Text(fmt.Sprintf("❌ Column %q does not exist in table %q.\n\n"+
			"Please enter a valid column name or use /cancel_admin to cancel:", in.Text, table)))
	}
	in.Data["old_column"] = in.Text
	return advance(dispatch.Text(fmt.Sprintf("✅ Column %q found in table %q.\n\nPlease enter the new column name:", in.Text, table)))
}

func (a *schemaAdmin) newColumn(ctx context.Context, in Input) Result {
	if res, ok := a.columnFree(ctx, in); !ok {
		return res
	}
	table, oldName := in.Data["table"], in.Data["old_column"]
	if err := a.catalog.RenameColumn(ctx, table, oldName, in.Text); err != nil {
		a.logger.Error("rename column", "table", table, "old", oldName, "new", in.Text, "error", err)
		// оператор видит текст, который вернула БД
		return reset(dispatch.Text(fmt.Sprintf("❌ Error renaming column: %s\n\n"+
			"Please check the error and try again with /admin.", db.ErrorText(err))))
	}
	a.logger.Info("column renamed", "table", table, "old", oldName, "new", in.Text, "admin", in.Participant)
	return advance(dispatch.Text(fmt.Sprintf("✅ Column renamed successfully! 🎉\n\n"+
		"Table: %s\nOld name: %s\nNew name: %s\n\nThe column has been renamed in the database.",
		table, oldName, in.Text)))
}

func (a *schemaAdmin) addColumn(ctx context.Context, in Input) Result {
	if res, ok := a.columnFree(ctx, in); !ok {
		return res
	}
	table := in.Data["table"]
	if err := a.catalog.AddTextColumn(ctx, table, in.Text); err != nil {
		a.logger.Error("add column", "table", table, "column", in.Text, "error", err)
		return reset(dispatch.Text(fmt.Sprintf("❌ Error adding column: %s\n\n"+
			"Please check the error and try again with /admin_add_column.", db.ErrorText(err))))
	}
	a.logger.Info("column added", "table", table, "column", in.Text, "admin", in.Participant)
	return advance(dispatch.Text(fmt.Sprintf("✅ Column added successfully! 🎉\n\n"+
		"Table: %s\nColumn: %s\nType: TEXT\n\nThe column has been added to the database.",
		table, in.Text)))
}
