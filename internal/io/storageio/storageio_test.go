package storageio_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/xdump/xdump/internal/io/storageio"
	"github.com/xdump/xdump/pkg/config"
)

func TestStorageio(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Storageio Suite")
}

var _ = Describe("Storageio", func() {
	table.DescribeTable("ParseS3",
		func(loc, bucket, key string, ok bool) {
			b, k, err := storageio.ParseS3(loc)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal(bucket))
			Expect(k).To(Equal(key))
		},
		table.Entry("key", "s3://dumps/shop.zip", "dumps", "shop.zip", true),
		table.Entry("nested key", "s3://dumps/daily/shop.zip", "dumps", "daily/shop.zip", true),
		table.Entry("no key", "s3://dumps", "", "", false),
		table.Entry("directory", "s3://dumps/daily/", "", "", false),
		table.Entry("local", "/tmp/shop.zip", "", "", false),
	)

	It("detects remote locations", func() {
		Expect(storageio.IsRemote("s3://dumps/shop.zip")).To(BeTrue())
		Expect(storageio.IsRemote("shop.zip")).To(BeFalse())
	})

	It("builds keys", func() {
		Expect(storageio.Key("", "/tmp/shop.zip")).To(Equal("shop.zip"))
		Expect(storageio.Key("/daily/", "/tmp/shop.zip")).To(Equal("daily/shop.zip"))
	})

	It("copies archives to a local directory and back", func() {
		ctx := context.Background()
		dir, err := os.MkdirTemp("", "storageio")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)

		src := filepath.Join(dir, "shop.zip")
		Expect(os.WriteFile(src, []byte("archive"), 0644)).To(Succeed())

		s, err := storageio.NewLocal(filepath.Join(dir, "store"))
		Expect(err).ToNot(HaveOccurred())
		loc, err := s.Upload(ctx, src, "daily/shop.zip")
		Expect(err).ToNot(HaveOccurred())
		Expect(loc).To(Equal(filepath.Join(dir, "store", "daily", "shop.zip")))

		dst := filepath.Join(dir, "copy.zip")
		Expect(s.Download(ctx, "daily/shop.zip", dst)).To(Succeed())
		data, err := os.ReadFile(dst)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal("archive"))

		Expect(s.Download(ctx, "missing.zip", dst)).ToNot(Succeed())
	})

	It("requires a bucket for S3", func() {
		_, err := storageio.NewS3(context.Background(), config.New(), "")
		Expect(err).To(HaveOccurred())
	})
})
