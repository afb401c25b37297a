package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"gistloop/internal/directive"
	"gistloop/internal/projectindex"
	"gistloop/internal/safeio"
	"gistloop/internal/searchcache"
)

const prefix = "src/main/java"

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newResolver(t *testing.T, root string, cfg Config) *Resolver {
	t.Helper()
	idx, err := projectindex.Build(root, []string{prefix}, []string{".java"}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.SetFileSummary("CityService.java", "com.iky.travel", "Caches cities.", ""))
	idx.SetNamespaceSummary("com.iky.travel", "Travel domain.")
	fsys, err := safeio.New(root)
	require.NoError(t, err)
	r, err := New(idx, fsys, searchcache.New(), cfg, nil)
	require.NoError(t, err)
	return r
}

func project(t *testing.T) string {
	root := t.TempDir()
	write(t, root, prefix+"/com/iky/travel/CityService.java", "class CityService { RedisTemplate redis; }")
	write(t, root, prefix+"/com/iky/travel/CityController.java", "class CityController { CityService svc; }")
	write(t, root, prefix+"/com/iky/travel/config/RedisConfig.java", "class RedisConfig {}")
	write(t, root, "src/main/resources/application.yml", "spring:\n  redis: localhost\n")
	write(t, root, "README.md", "CityService docs")
	return root
}

func TestSearch_CaseInsensitiveSortedAndFiltered(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newResolver(t, project(t), Config{Workers: 2})

	got, err := r.Search(context.Background(), "REDIS")
	require.NoError(t, err)
	assert.Equal(t, []string{
		prefix + "/com/iky/travel/CityService.java",
		prefix + "/com/iky/travel/config/RedisConfig.java",
		"src/main/resources/application.yml",
	}, got)
}

func TestSearch_SkipsOversizedFilesAndHonorsMaxFiles(t *testing.T) {
	defer goleak.VerifyNone(t)
	root := project(t)
	write(t, root, prefix+"/com/iky/travel/Big.java", "class Big { String needle = \"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx\"; }")
	r := newResolver(t, root, Config{MaxFileSize: 50})
	got, err := r.Search(context.Background(), "needle")
	require.NoError(t, err)
	assert.Empty(t, got)

	r = newResolver(t, root, Config{MaxFiles: 1})
	got, err = r.Search(context.Background(), "class")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestResolve_AbsentKeywordThenLoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newResolver(t, project(t), Config{})
	reqs := directive.Extract("...\n**Next Steps**\n[I need to search for keywords: <keyword>Foo</keyword>]").Requests

	first := r.Resolve(context.Background(), reqs)
	assert.Equal(t, "No matching files found with 'Foo'\n", first.NewInformation)
	assert.Equal(t, NotFound, first.Outcome)
	assert.Equal(t, []string{"foo"}, r.Cache().Absent())

	second := r.Resolve(context.Background(), reqs)
	assert.Equal(t, LoopDetected, second.Outcome)
	assert.Equal(t, first.NewInformation, second.NewInformation)
}

func TestResolve_SearchHitIsCached(t *testing.T) {
	root := project(t)
	r := newResolver(t, root, Config{})
	res := r.Resolve(context.Background(), directive.Requests{Keywords: []string{"CityService"}})
	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, "You requested to search for : CityService\nHere are the results:<files>"+
		"<file>"+prefix+"/com/iky/travel/CityController.java</file>, "+
		"<file>"+prefix+"/com/iky/travel/CityService.java</file></files>\n", res.NewInformation)

	// A new file is not seen because the cached result is reused.
	write(t, root, prefix+"/com/iky/travel/Other.java", "CityService again")
	again := r.Resolve(context.Background(), directive.Requests{Keywords: []string{"cityservice"}})
	assert.NotContains(t, again.NewInformation, "Other.java")
}

func TestResolve_FileHitAndMiss(t *testing.T) {
	root := project(t)
	r := newResolver(t, root, Config{})
	res := r.Resolve(context.Background(), directive.Requests{Files: []string{"CityService.java", "Missing.java"}})

	assert.Equal(t, Found, res.Outcome)
	assert.Equal(t, []string{"CityService.java"}, res.Found)
	assert.Equal(t, []string{"Missing.java"}, res.NotFound)
	assert.Equal(t,
		"<file name=\"CityService.java\">\n"+
			"    <summary>Caches cities.</summary>\n"+
			"    <content>class CityService { RedisTemplate redis; }</content>\n"+
			"</file>\n"+
			"<file name=\"Missing.java\">\n"+
			"    <error>File not found. Do not request it again.</error>\n"+
			"</file>\n",
		res.NewInformation)
}

func TestResolve_FileContentReadAtResolutionTime(t *testing.T) {
	root := project(t)
	r := newResolver(t, root, Config{})
	_ = r.Resolve(context.Background(), directive.Requests{Files: []string{"CityController.java"}})

	write(t, root, prefix+"/com/iky/travel/CityController.java", "class CityController { /* changed content */ }")
	res := r.Resolve(context.Background(), directive.Requests{Files: []string{"CityController.java"}})
	assert.Contains(t, res.NewInformation, "<content>class CityController { /* changed content */ }</content>")
}

func TestResolve_SameSizeEditWithRestoredMtimeIsSeen(t *testing.T) {
	root := project(t)
	r := newResolver(t, root, Config{})
	p := filepath.Join(root, filepath.FromSlash(prefix+"/com/iky/travel/config/RedisConfig.java"))
	info, err := os.Stat(p)
	require.NoError(t, err)

	first := r.Resolve(context.Background(), directive.Requests{Files: []string{"RedisConfig.java"}})
	require.Contains(t, first.NewInformation, "<content>class RedisConfig {}</content>")

	require.NoError(t, os.WriteFile(p, []byte("class RedisConfog {}"), 0o644))
	require.NoError(t, os.Chtimes(p, info.ModTime(), info.ModTime()))
	res := r.Resolve(context.Background(), directive.Requests{Files: []string{"RedisConfig.java"}})
	assert.Contains(t, res.NewInformation, "<content>class RedisConfog {}</content>")
}

func TestResolve_FileRequestedByPath(t *testing.T) {
	r := newResolver(t, project(t), Config{})
	res := r.Resolve(context.Background(), directive.Requests{Files: []string{prefix + "/com/iky/travel/config/RedisConfig.java"}})
	assert.Equal(t, Found, res.Outcome)
	assert.Contains(t, res.NewInformation, "<file name=\"RedisConfig.java\">")
}

func TestResolve_Packages(t *testing.T) {
	r := newResolver(t, project(t), Config{})
	res := r.Resolve(context.Background(), directive.Requests{Packages: []string{"com.iky.travel", "com.nope"}})
	assert.Equal(t,
		"<package name=\"com.iky.travel\">\n"+
			"    <notes>Travel domain.</notes>\n"+
			"    <sub_packages>com.iky.travel.config</sub_packages>\n"+
			"    <files>CityController.java, CityService.java</files>\n"+
			"</package>\n"+
			"<package name=\"com.nope\">\n"+
			"    <error>Package not found.</error>\n"+
			"</package>\n",
		res.NewInformation)
	assert.Equal(t, []string{"com.nope"}, res.NotFound)
}

func TestResolve_OrderAndLoopPrecedence(t *testing.T) {
	r := newResolver(t, project(t), Config{})
	r.Cache().Put("ghost", nil)
	res := r.Resolve(context.Background(), directive.Requests{
		Keywords: []string{"ghost"},
		Files:    []string{"CityService.java"},
	})
	assert.Equal(t, LoopDetected, res.Outcome)
	assert.Regexp(t, `(?s)^No matching files found with 'ghost'\n<file name="CityService.java">`, res.NewInformation)
}

func TestResolve_EmptyRequests(t *testing.T) {
	r := newResolver(t, project(t), Config{})
	res := r.Resolve(context.Background(), directive.Requests{})
	assert.Equal(t, NotFound, res.Outcome)
	assert.Empty(t, res.NewInformation)
}

func TestSearch_CanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	r := newResolver(t, project(t), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Search(ctx, "class")
	assert.ErrorIs(t, err, context.Canceled)
}
