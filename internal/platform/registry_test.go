package platform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talentwire/jobfetch/internal/platform"
	"github.com/talentwire/jobfetch/internal/scrape"
)

func TestResolveLinkedIn(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"collection url with currentJobId",
			"https://www.linkedin.com/jobs/collections/recommended/?currentJobId=4012345678",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
		{
			"search url with currentJobId",
			"https://www.linkedin.com/jobs/search/?currentJobId=4012345678&keywords=golang",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
		{
			"slug path",
			"https://www.linkedin.com/jobs/view/senior-engineer-at-acme-4012345678",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
		{
			"direct path with tracking params",
			"https://www.linkedin.com/jobs/view/4012345678?position=1&pageNum=0&refId=abc",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
		{
			"regional domain",
			"https://in.linkedin.com/jobs/view/4012345678",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
		{
			"no scheme",
			"www.linkedin.com/jobs/view/4012345678",
			"https://www.linkedin.com/jobs/view/4012345678",
		},
	}
	reg := platform.NewRegistry()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			target, err := reg.Resolve(tc.in)
			require.NoError(t, err)
			require.Equal(t, scrape.PlatformLinkedIn, target.Platform)
			require.Equal(t, tc.want, target.Canonical)
			require.Equal(t, tc.in, target.Raw)
		})
	}
}

func TestResolveIndeed(t *testing.T) {
	t.Parallel()

	reg := platform.NewRegistry()

	target, err := reg.Resolve("https://in.indeed.com/viewjob?jk=f521d46062b182d1&from=serp&vjs=3")
	require.NoError(t, err)
	require.Equal(t, scrape.PlatformIndeed, target.Platform)
	require.Equal(t, "https://in.indeed.com/viewjob?jk=f521d46062b182d1", target.Canonical)

	_, err = reg.Resolve("https://in.indeed.com/jobs?q=golang")
	require.Error(t, err, "indeed url without a job key cannot canonicalize")
}

func TestResolveInternshala(t *testing.T) {
	t.Parallel()

	reg := platform.NewRegistry()
	target, err := reg.Resolve("https://internshala.com/job/detail/golang-developer-at-acme-12345678?utm_source=feed")
	require.NoError(t, err)
	require.Equal(t, scrape.PlatformInternshala, target.Platform)
	require.Equal(t, "https://internshala.com/job/detail/golang-developer-at-acme-12345678", target.Canonical)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := platform.NewRegistry()
	inputs := []string{
		"https://www.linkedin.com/jobs/collections/recommended/?currentJobId=4012345678",
		"https://in.indeed.com/viewjob?jk=f521d46062b182d1&from=serp",
		"https://internshala.com/job/detail/backend-intern-87654321/",
	}
	for _, in := range inputs {
		first, err := reg.Resolve(in)
		require.NoError(t, err)
		second, err := reg.Resolve(first.Canonical)
		require.NoError(t, err)
		require.Equal(t, first.Canonical, second.Canonical, "normalize(normalize(u)) must equal normalize(u) for %s", in)
	}
}

func TestResolveRejectsUnsupportedAndInvalid(t *testing.T) {
	t.Parallel()

	reg := platform.NewRegistry()

	_, err := reg.Resolve("https://example.com/jobs/123")
	require.ErrorContains(t, err, "unsupported site")

	_, err = reg.Resolve("")
	require.Error(t, err)

	_, err = reg.Resolve("https://notlinkedin.com.evil.example/jobs/view/4012345678")
	require.ErrorContains(t, err, "unsupported site")
}

func TestSupported(t *testing.T) {
	t.Parallel()

	reg := platform.NewRegistry()
	require.Equal(t, []scrape.Platform{
		scrape.PlatformLinkedIn,
		scrape.PlatformInternshala,
		scrape.PlatformIndeed,
	}, reg.Supported())
}
