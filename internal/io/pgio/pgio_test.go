package pgio

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/xdump/xdump/internal/ent/backend"
	"github.com/xdump/xdump/pkg/config"
)

const schema = `
CREATE TABLE groups (
  id SERIAL PRIMARY KEY,
  name VARCHAR(100) NOT NULL
);
CREATE TABLE employees (
  id SERIAL PRIMARY KEY,
  first_name VARCHAR(100) NOT NULL,
  last_name VARCHAR(100) NOT NULL,
  manager_id INTEGER REFERENCES employees(id),
  referrer_id INTEGER REFERENCES employees(id),
  group_id INTEGER NOT NULL REFERENCES groups(id)
);
CREATE TABLE tickets (
  id SERIAL PRIMARY KEY,
  author_id INTEGER NOT NULL REFERENCES employees(id),
  subject VARCHAR(100) NOT NULL,
  message TEXT NOT NULL
);`

const data = `
INSERT INTO groups (name) VALUES ('Admin'), ('User');
INSERT INTO employees (id, first_name, last_name, manager_id, referrer_id, group_id) VALUES
  (1, 'John', 'Doe', NULL, NULL, 1),
  (2, 'John', 'Black', 1, NULL, 1),
  (3, 'John', 'Smith', 1, NULL, 1),
  (4, 'John', 'Brown', 3, NULL, 2),
  (5, 'John', 'Snow', 3, 4, 2);
INSERT INTO tickets (id, author_id, subject, message) VALUES
  (1, 1, 'Sub 1', 'Message 1'),
  (2, 2, 'Sub 2', 'Message 2'),
  (3, 2, 'Sub 3', 'Message 3');`

func TestPgio(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pgio Suite")
}

var _ = Describe("pg_dump options", func() {
	cfg := config.New(
		config.OptPgHost("db"),
		config.OptPgPort(5433),
		config.OptPgUser("app"),
		config.OptPgDB("shop"),
	)

	It("builds connection arguments", func() {
		args := pgDumpArgs(cfg, "00000003-1", []string{"-a"})
		Expect(args).To(Equal([]string{
			"-U", "app", "-h", "db", "-p", "5433", "-d", "shop",
			"--snapshot=00000003-1", "-a",
		}))
	})

	It("quotes table names", func() {
		Expect(schemaArgs([]string{"groups", "Users"})).To(Equal([]string{
			"-s", "-x", "-O", "-t", `"groups"`, "-t", `"Users"`,
		}))
		Expect(sequencesArgs([]string{"groups_id_seq"})).To(Equal([]string{
			"-a", "-t", `"groups_id_seq"`,
		}))
	})

	It("does not call pg_dump without objects", func() {
		Expect(schemaArgs(nil)).To(BeNil())
		Expect(sequencesArgs(nil)).To(BeNil())
		res, err := pgDump(context.Background(), cfg, "", sequencesArgs(nil)...)
		Expect(err).ToNot(HaveOccurred())
		Expect(res).To(BeEmpty())
	})

	table.DescribeTable("environment",
		func(password string, expected []string) {
			env := []string{"PATH=/bin", "PGPASSWORD=old"}
			Expect(pgDumpEnv(env, password)).To(Equal(expected))
		},
		table.Entry("with password", "secret",
			[]string{"PATH=/bin", "PGPASSWORD=secret"}),
		table.Entry("without password", "",
			[]string{"PATH=/bin", "PGPASSWORD=old"}),
	)
})

var _ = Describe("PostgreSQL", func() {
	var (
		ctx    = context.Background()
		cfg    config.Config
		b      backend.Backend
		dbName string
	)

	BeforeEach(func() {
		if os.Getenv("DB") != config.Postgres {
			Skip("PostgreSQL tests run with DB=postgres")
		}
		dbName = "xdump_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		cfg = testConfig(dbName)

		var err error
		b, err = New(ctx, cfg)
		Expect(err).ToNot(HaveOccurred())
		Expect(b.CreateDatabase(ctx, dbName, cfg.PgUser)).To(Succeed())
		l, err := b.Loader(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(l.ExecScript(ctx, schema+data)).To(Succeed())
		Expect(l.Commit(ctx)).To(Succeed())
	})

	AfterEach(func() {
		if b == nil {
			return
		}
		b.Close()
		p := b.(*pgio)
		Expect(p.DropConnections(ctx, dbName)).To(Succeed())
		Expect(b.DropDatabase(ctx, dbName)).To(Succeed())
		b = nil
	})

	It("dumps schema and sequences", func() {
		snap, err := b.Snapshot(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer snap.Close(ctx)
		s, err := snap.Schema(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(s.SQL)).To(ContainSubstring("CREATE TABLE public.groups"))
		Expect(string(s.SQL)).ToNot(ContainSubstring("COPY public.groups"))
		Expect(string(s.Sequences)).
			To(ContainSubstring("SELECT pg_catalog.setval('public.groups_id_seq', 2, true);"))
	})

	It("reads foreign keys", func() {
		snap, err := b.Snapshot(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer snap.Close(ctx)
		rels, err := snap.Relations(ctx)
		Expect(err).ToNot(HaveOccurred())
		res := make([]string, len(rels))
		for i := range rels {
			res[i] = rels[i].String()
		}
		Expect(res).To(ConsistOf(
			"employees(manager_id) -> employees(id)",
			"employees(referrer_id) -> employees(id)",
			"employees(group_id) -> groups(id)",
			"tickets(author_id) -> employees(id)",
		))
	})

	It("exports CSV", func() {
		var buf bytes.Buffer
		n, err := b.ExportCSV(ctx, "SELECT * FROM groups ORDER BY id", &buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(2)))
		Expect(buf.String()).To(Equal("id,name\n1,Admin\n2,User\n"))
	})

	It("does not see changes made after snapshot start", func() {
		snap, err := b.Snapshot(ctx)
		Expect(err).ToNot(HaveOccurred())
		_, err = b.Run(ctx, "INSERT INTO groups (id, name) VALUES (3, 'test')")
		Expect(err).ToNot(HaveOccurred())
		var buf bytes.Buffer
		_, err = snap.ExportCSV(ctx, "SELECT * FROM groups ORDER BY id", &buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf.String()).To(Equal("id,name\n1,Admin\n2,User\n"))
		Expect(snap.Close(ctx)).To(Succeed())

		rows, err := b.Run(ctx, `SELECT COUNT(*) AS "count" FROM groups`)
		Expect(err).ToNot(HaveOccurred())
		Expect(rows[0]["count"]).To(Equal(int64(3)))
	})

	It("loads a dump into a recreated database", func() {
		snap, err := b.Snapshot(ctx)
		Expect(err).ToNot(HaveOccurred())
		s, err := snap.Schema(ctx)
		Expect(err).ToNot(HaveOccurred())
		var groups bytes.Buffer
		_, err = snap.ExportCSV(ctx, "SELECT * FROM groups", &groups)
		Expect(err).ToNot(HaveOccurred())
		Expect(snap.Close(ctx)).To(Succeed())

		Expect(b.RecreateDatabase(ctx)).To(Succeed())
		l, err := b.Loader(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer l.Close(ctx)
		Expect(l.ExecScript(ctx, string(s.SQL))).To(Succeed())
		n, err := l.CopyCSV(ctx, "groups", &groups)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(2)))
		Expect(l.ExecScript(ctx, string(s.Sequences))).To(Succeed())
		Expect(l.Commit(ctx)).To(Succeed())

		rows, err := b.Run(ctx, "SELECT name FROM groups ORDER BY id")
		Expect(err).ToNot(HaveOccurred())
		Expect(rows).To(Equal([]map[string]any{{"name": "Admin"}, {"name": "User"}}))
		rows, err = b.Run(ctx, "SELECT last_value FROM groups_id_seq")
		Expect(err).ToNot(HaveOccurred())
		Expect(rows[0]["last_value"]).To(Equal(int64(2)))
	})

	It("truncates tables", func() {
		l, err := b.Loader(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer l.Close(ctx)
		Expect(l.Truncate(ctx, []string{"tickets"})).To(Succeed())
		Expect(l.Commit(ctx)).To(Succeed())
		rows, err := b.Run(ctx, "SELECT id FROM tickets")
		Expect(err).ToNot(HaveOccurred())
		Expect(rows).To(BeEmpty())
	})

	It("selects only readable tables", func() {
		role := "xdump_reader_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		_, err := b.Run(ctx, "CREATE ROLE "+role+" LOGIN")
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			_, err := b.Run(ctx, "DROP OWNED BY "+role)
			Expect(err).ToNot(HaveOccurred())
			_, err = b.Run(ctx, "DROP ROLE "+role)
			Expect(err).ToNot(HaveOccurred())
		}()
		_, err = b.Run(ctx, "GRANT SELECT ON groups TO "+role)
		Expect(err).ToNot(HaveOccurred())
		_, err = b.Run(ctx, "GRANT INSERT ON tickets TO "+role)
		Expect(err).ToNot(HaveOccurred())

		rcfg := cfg
		rcfg.PgUser = role
		rb, err := New(ctx, rcfg)
		Expect(err).ToNot(HaveOccurred())
		defer rb.Close()
		snap, err := rb.Snapshot(ctx)
		Expect(err).ToNot(HaveOccurred())
		defer snap.Close(ctx)
		tables, err := snap.(*snapshot).names(ctx, selectableTablesSQL)
		Expect(err).ToNot(HaveOccurred())
		Expect(tables).To(Equal([]string{"groups"}))
	})

	It("ignores drop of a missing database", func() {
		Expect(b.DropDatabase(ctx, "not_exists")).To(Succeed())
		rows, err := b.Run(ctx,
			"SELECT 1 FROM pg_database WHERE datname = $1", "not_exists")
		Expect(err).ToNot(HaveOccurred())
		Expect(rows).To(BeEmpty())
	})
})

var _ = Describe("RecreateDatabase", func() {
	It("keeps the pool usable when recreation fails", func() {
		ctx := context.Background()
		cfg := config.New(
			config.OptPgHost("127.0.0.1"),
			config.OptPgPort(1),
			config.OptPgDB("xdump_unreachable"),
		)
		b, err := New(ctx, cfg)
		Expect(err).ToNot(HaveOccurred())
		defer b.Close()

		Expect(b.RecreateDatabase(ctx)).ToNot(Succeed())
		_, err = b.Run(ctx, "SELECT 1")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).ToNot(ContainSubstring("closed pool"))
	})
})

func testConfig(dbName string) config.Config {
	opts := []config.Option{config.OptPgDB(dbName)}
	if h := os.Getenv("XDUMP_PG_HOST"); h != "" {
		opts = append(opts, config.OptPgHost(h))
	}
	if p, err := strconv.Atoi(os.Getenv("XDUMP_PG_PORT")); err == nil {
		opts = append(opts, config.OptPgPort(p))
	}
	if u := os.Getenv("XDUMP_PG_USER"); u != "" {
		opts = append(opts, config.OptPgUser(u))
	}
	opts = append(opts, config.OptPgPass(os.Getenv("XDUMP_PG_PASS")))
	if db := os.Getenv("XDUMP_PG_DB"); db != "" {
		opts = append(opts, config.OptPgMaintenanceDB(db))
	}
	return config.New(opts...)
}
