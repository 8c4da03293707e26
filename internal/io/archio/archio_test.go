package archio_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/xdump/xdump/internal/io/archio"
)

func TestArchio(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Archio Suite")
}

var _ = Describe("Archio", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "archio")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	table.DescribeTable("round trip with every compression",
		func(c archio.Compression) {
			path := filepath.Join(dir, "dump.zip")
			w, err := archio.Create(path, c)
			Expect(err).ToNot(HaveOccurred())
			Expect(w.WriteFile(archio.SchemaPath, []byte("CREATE TABLE groups (id int);"))).To(Succeed())
			ew, err := w.Create(archio.DataPath("groups"))
			Expect(err).ToNot(HaveOccurred())
			_, err = io.WriteString(ew, "id,name\n1,Admin\n")
			Expect(err).ToNot(HaveOccurred())
			Expect(w.WriteFile(archio.DataPath("employees"), []byte("id\n"))).To(Succeed())
			Expect(w.Close()).To(Succeed())

			r, err := archio.Open(path)
			Expect(err).ToNot(HaveOccurred())
			defer r.Close()
			Expect(r.Names()).To(Equal([]string{
				"dump/schema.sql", "dump/data/groups.csv", "dump/data/employees.csv",
			}))
			Expect(r.Tables()).To(Equal([]string{"groups", "employees"}))
			Expect(r.Has(archio.SequencesPath)).To(BeFalse())
			data, err := r.ReadFile(archio.DataPath("groups"))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(Equal("id,name\n1,Admin\n"))
			es := r.Entries()
			Expect(es).To(HaveLen(3))
			Expect(es[0].Method).To(Equal(string(c)))
			Expect(es[1].Size).To(Equal(uint64(16)))
		},
		table.Entry("deflate", archio.Deflate),
		table.Entry("store", archio.Store),
		table.Entry("zstd", archio.Zstd),
	)

	It("removes aborted archives", func() {
		path := filepath.Join(dir, "broken.zip")
		w, err := archio.Create(path, archio.Deflate)
		Expect(err).ToNot(HaveOccurred())
		Expect(w.WriteFile(archio.SchemaPath, []byte("--"))).To(Succeed())
		Expect(w.Abort()).To(Succeed())
		_, err = os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("stamps entries with the time of writing", func() {
		path := filepath.Join(dir, "dated.zip")
		w, err := archio.Create(path, archio.Deflate)
		Expect(err).ToNot(HaveOccurred())
		Expect(w.WriteFile(archio.SchemaPath, []byte("--"))).To(Succeed())
		Expect(w.Close()).To(Succeed())
		r, err := archio.Open(path)
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()
		Expect(r.Entries()[0].Modified).To(BeTemporally("~", time.Now(), time.Minute))
	})

	It("reports missing entries", func() {
		path := filepath.Join(dir, "empty.zip")
		w, err := archio.Create(path, archio.Deflate)
		Expect(err).ToNot(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		r, err := archio.Open(path)
		Expect(err).ToNot(HaveOccurred())
		defer r.Close()
		_, err = r.ReadFile(archio.SchemaPath)
		Expect(err).To(MatchError(os.ErrNotExist))
	})

	table.DescribeTable("TableName",
		func(name, tbl string, ok bool) {
			t, isData := archio.TableName(name)
			Expect(isData).To(Equal(ok))
			Expect(t).To(Equal(tbl))
		},
		table.Entry("data", "dump/data/groups.csv", "groups", true),
		table.Entry("schema", "dump/schema.sql", "", false),
		table.Entry("nested", "dump/data/x/y.csv", "", false),
		table.Entry("no table", "dump/data/.csv", "", false),
	)

	It("parses compression names", func() {
		c, err := archio.NewCompression("")
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(Equal(archio.Deflate))
		c, err = archio.NewCompression("ZSTD")
		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(Equal(archio.Zstd))
		_, err = archio.NewCompression("lzma")
		Expect(err).To(HaveOccurred())
	})
})
