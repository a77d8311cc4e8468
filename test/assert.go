package test

import (
	"testing"
	"time"

	"github.com/onsi/gomega"
)

type Assertions struct {
	internal *gomega.WithT
}

func NewAssertions(t *testing.T) Assertions {
	return Assertions{internal: gomega.NewWithT(t)}
}

func (a Assertions) Nil(err error, msg ...any) {
	a.internal.Expect(err).To(gomega.BeNil(), msg...)
}

func (a Assertions) NotNil(values ...any) {
	for _, value := range values {
		a.internal.Expect(value).To(gomega.Not(gomega.BeNil()))
	}
}

func (a Assertions) Error(err error, target error) {
	a.internal.Expect(err).To(gomega.MatchError(target))
}

func (a Assertions) NotEmpty(value string) {
	a.internal.Expect(value).To(gomega.Not(gomega.BeEmpty()))
}

func (a Assertions) True(value bool) {
	a.internal.Expect(value).To(gomega.BeTrue())
}

func (a Assertions) False(value bool) {
	a.internal.Expect(value).To(gomega.BeFalse())
}

func (a Assertions) Equals(value any, expected any) {
	a.internal.Expect(value).To(gomega.Equal(expected))
}

func (a Assertions) Len(value any, length int) {
	a.internal.Expect(value).To(gomega.HaveLen(length))
}

func (a Assertions) Contains(value string, substr string) {
	a.internal.Expect(value).To(gomega.ContainSubstring(substr))
}

func (a Assertions) MatchJson(value string, pattern string) {
	a.internal.Expect(value).To(gomega.MatchJSON(pattern))
}

// Eventually polls fn until it returns expected or two seconds elapse.
func (a Assertions) Eventually(fn any, expected any) {
	a.internal.Eventually(fn).WithTimeout(2 * time.Second).WithPolling(10 * time.Millisecond).Should(gomega.Equal(expected))
}

// Consistently checks that fn keeps returning expected for a short window.
func (a Assertions) Consistently(fn any, expected any, window time.Duration) {
	a.internal.Consistently(fn).WithTimeout(window).WithPolling(10 * time.Millisecond).Should(gomega.Equal(expected))
}
