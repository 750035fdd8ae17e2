package sequence_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yousuf/tracelink/internal/sequence"
)

const twoSequences = `sequences:
  - name: render
    stack: |
      Error
          at App (bundle.js:2:10)
  - name: commit
    stack: "at commitRoot (bundle.js:9:4)"
`

// replace writes data next to path and renames it into place so the watcher
// never observes a half-written file.
func replace(path, data string) {
	tmp := path + ".tmp"
	Expect(os.WriteFile(tmp, []byte(data), 0o644)).To(Succeed())
	Expect(os.Rename(tmp, path)).To(Succeed())
}

var _ = Describe("Parse", func() {
	It("decodes named stacks", func() {
		seqs, err := sequence.Parse([]byte(twoSequences))
		Expect(err).NotTo(HaveOccurred())
		Expect(seqs).To(HaveLen(2))
		Expect(seqs[0].Name).To(Equal("render"))
		Expect(seqs[0].Stack).To(Equal("Error\n    at App (bundle.js:2:10)\n"))
		Expect(seqs[1]).To(Equal(sequence.Sequence{Name: "commit", Stack: "at commitRoot (bundle.js:9:4)"}))
	})

	It("accepts an empty document", func() {
		seqs, err := sequence.Parse(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(seqs).To(BeEmpty())
	})

	It("rejects missing names", func() {
		_, err := sequence.Parse([]byte("sequences:\n  - stack: x\n"))
		Expect(err).To(MatchError(ContainSubstring("name is required")))
	})

	It("rejects duplicate names", func() {
		_, err := sequence.Parse([]byte("sequences:\n  - name: a\n  - name: a\n"))
		Expect(err).To(MatchError(ContainSubstring("duplicate name")))
	})

	It("rejects malformed yaml", func() {
		_, err := sequence.Parse([]byte("sequences: [\n"))
		Expect(err).To(MatchError(ContainSubstring("failed to parse sequences")))
	})
})

var _ = Describe("Load", func() {
	It("fails for a missing file", func() {
		_, err := sequence.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(MatchError(ContainSubstring("failed to read sequences")))
	})
})

var _ = Describe("Watch", func() {
	var (
		path    string
		updates chan []sequence.Sequence
		cancel  context.CancelFunc
		done    chan error
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "sequences.yaml")
		Expect(os.WriteFile(path, []byte(twoSequences), 0o644)).To(Succeed())

		updates = make(chan []sequence.Sequence, 8)
		done = make(chan error, 1)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go func() {
			done <- sequence.Watch(ctx, path, nil, func(seqs []sequence.Sequence) {
				updates <- seqs
			})
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(done).WithTimeout(2 * time.Second).Should(Receive(BeNil()))
	})

	It("delivers the initial sequences", func() {
		var seqs []sequence.Sequence
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive(&seqs))
		Expect(seqs).To(HaveLen(2))
	})

	It("delivers changes", func() {
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive())

		replace(path, "sequences:\n  - name: render\n    stack: at App (bundle.js:5:1)\n")

		var seqs []sequence.Sequence
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive(&seqs))
		Expect(seqs).To(Equal([]sequence.Sequence{{Name: "render", Stack: "at App (bundle.js:5:1)"}}))
	})

	It("keeps the last good set when the file turns invalid", func() {
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive())

		replace(path, "sequences: [\n")
		Consistently(updates).WithTimeout(300 * time.Millisecond).ShouldNot(Receive())

		replace(path, "sequences:\n  - name: fixed\n    stack: at x (a.js:1:1)\n")
		var seqs []sequence.Sequence
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive(&seqs))
		Expect(seqs[0].Name).To(Equal("fixed"))
	})

	It("ignores other files in the directory", func() {
		Eventually(updates).WithTimeout(2 * time.Second).Should(Receive())

		Expect(os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1"), 0o644)).To(Succeed())
		Consistently(updates).WithTimeout(300 * time.Millisecond).ShouldNot(Receive())
	})
})

var _ = Describe("Watch startup", func() {
	It("fails when the file does not parse", func() {
		path := filepath.Join(GinkgoT().TempDir(), "bad.yaml")
		Expect(os.WriteFile(path, []byte("sequences:\n  - stack: x\n"), 0o644)).To(Succeed())

		err := sequence.Watch(context.Background(), path, nil, func([]sequence.Sequence) {})
		Expect(err).To(MatchError(ContainSubstring("name is required")))
	})
})
