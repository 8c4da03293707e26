package pgio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xdump/xdump/pkg/config"
)

// pgDumpBin is the pg_dump executable, it is looked up in PATH.
var pgDumpBin = "pg_dump"

// schemaArgs dumps DDL without privileges and ownership.
func schemaArgs(objects []string) []string {
	if len(objects) == 0 {
		return nil
	}
	return append([]string{"-s", "-x", "-O"}, tableArgs(objects)...)
}

// sequencesArgs dumps setval calls for sequences.
func sequencesArgs(seqs []string) []string {
	if len(seqs) == 0 {
		return nil
	}
	return append([]string{"-a"}, tableArgs(seqs)...)
}

func tableArgs(names []string) []string {
	res := make([]string, 0, 2*len(names))
	for _, n := range names {
		res = append(res, "-t", pgx.Identifier{n}.Sanitize())
	}
	return res
}

func pgDumpArgs(cfg config.Config, snapshotID string, args []string) []string {
	res := []string{
		"-U", cfg.PgUser,
		"-h", cfg.PgHost,
		"-p", strconv.Itoa(cfg.PgPort),
		"-d", cfg.PgDB,
	}
	if snapshotID != "" {
		res = append(res, "--snapshot="+snapshotID)
	}
	return append(res, args...)
}

// pgDumpEnv passes the password to pg_dump only when it is set, so
// .pgpass and other ways of authentication keep working.
func pgDumpEnv(environ []string, password string) []string {
	res := make([]string, 0, len(environ)+1)
	for _, e := range environ {
		if password != "" && strings.HasPrefix(e, "PGPASSWORD=") {
			continue
		}
		res = append(res, e)
	}
	if password != "" {
		res = append(res, "PGPASSWORD="+password)
	}
	return res
}

// pgDump runs pg_dump with the arguments and returns its output. Empty
// arguments mean there is nothing to dump, pg_dump is not called then,
// because without -t options it dumps the whole database.
func pgDump(
	ctx context.Context,
	cfg config.Config,
	snapshotID string,
	args ...string,
) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, pgDumpBin, pgDumpArgs(cfg, snapshotID, args)...)
	cmd.Env = pgDumpEnv(os.Environ(), cfg.PgPass)
	res, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		slog.Error("Cannot run pg_dump", "error", err)
		return nil, err
	}
	return res, nil
}
