package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/catalog"
	"curator/internal/testsupport"
)

func newFile(t *testing.T, store *catalog.Store, folderID int64, path string) *catalog.File {
	t.Helper()
	file, err := store.BeginFileScan(context.Background(), folderID, path, filepath.Base(path), 1024, time.Now().UTC())
	if err != nil {
		t.Fatalf("BeginFileScan failed: %v", err)
	}
	return file
}

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	folder, err := store.AddFolder(ctx, "/media/movies", "Movies")
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	if folder.ID == 0 {
		t.Fatal("expected folder ID to be assigned")
	}

	fetched, err := store.FolderByPath(ctx, "/media/movies")
	if err != nil {
		t.Fatalf("FolderByPath failed: %v", err)
	}
	if fetched.ID != folder.ID || fetched.Name != "Movies" {
		t.Fatalf("unexpected fetched folder: %#v", fetched)
	}
}

func TestRemoveFolderCascadesToFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Heat (1995).mkv")

	if err := store.RemoveFolder(ctx, folder.ID); err != nil {
		t.Fatalf("RemoveFolder failed: %v", err)
	}
	if _, err := store.FileByID(ctx, file.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after cascade delete, got %v", err)
	}
	if err := store.RemoveFolder(ctx, folder.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestBeginFileScanUpsertsByPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	folder := testsupport.NewFolder(t, store, "/media/tv", "TV")
	first := newFile(t, store, folder.ID, "/media/tv/Show - S01E01.mkv")
	second := newFile(t, store, folder.ID, "/media/tv/Show - S01E01.mkv")

	if first.ID != second.ID {
		t.Fatalf("expected upsert to reuse row, got %d then %d", first.ID, second.ID)
	}
	if second.ScanStatus != catalog.ScanScanning {
		t.Fatalf("expected scanning status, got %s", second.ScanStatus)
	}
}

func TestCompleteFileScanReplacesTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Heat (1995).mkv")

	update := catalog.ProbeUpdate{
		MediaType:  catalog.MediaTypeMovie,
		Title:      "Heat",
		Duration:   10230.5,
		VideoCodec: "h264",
		Resolution: "1920x1080",
	}
	tracks := []catalog.Track{
		{Kind: catalog.TrackAudio, Index: 0, Original: catalog.TrackFacts{Title: "Surround", Language: "eng", Codec: "dts", Channels: 6, SampleRate: 48000}},
		{Kind: catalog.TrackSubtitle, Index: 0, Original: catalog.TrackFacts{Language: "eng", Codec: "subrip", Forced: true}},
	}
	if err := store.CompleteFileScan(ctx, file.ID, update, true, tracks); err != nil {
		t.Fatalf("CompleteFileScan failed: %v", err)
	}

	scanned, err := store.FileByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("FileByID failed: %v", err)
	}
	if scanned.ScanStatus != catalog.ScanCompleted || scanned.Title != "Heat" {
		t.Fatalf("unexpected scanned file: %#v", scanned)
	}

	stored, err := store.TracksForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("TracksForFile failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(stored))
	}
	if stored[0].Kind != catalog.TrackAudio || stored[0].Original.Channels != 6 {
		t.Fatalf("unexpected audio track: %#v", stored[0])
	}
	if stored[1].Kind != catalog.TrackSubtitle || !stored[1].Original.Forced {
		t.Fatalf("unexpected subtitle track: %#v", stored[1])
	}

	// Re-probing with replaceTracks=false keeps the existing rows.
	if err := store.CompleteFileScan(ctx, file.ID, update, false, nil); err != nil {
		t.Fatalf("second CompleteFileScan failed: %v", err)
	}
	stored, err = store.TracksForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("TracksForFile failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected tracks preserved, got %d", len(stored))
	}
}

func TestStageTrackEditMarksFilePending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Ran (1985).mkv")
	tracks := []catalog.Track{
		{Kind: catalog.TrackAudio, Index: 0, Original: catalog.TrackFacts{Language: "jpn", Codec: "ac3", Channels: 2}},
	}
	if err := store.CompleteFileScan(ctx, file.ID, catalog.ProbeUpdate{MediaType: catalog.MediaTypeMovie, Title: "Ran"}, true, tracks); err != nil {
		t.Fatalf("CompleteFileScan failed: %v", err)
	}
	stored, err := store.TracksForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("TracksForFile failed: %v", err)
	}

	if err := store.StageTrackEdit(ctx, stored[0].ID, "Japanese Stereo", "jpn"); err != nil {
		t.Fatalf("StageTrackEdit failed: %v", err)
	}

	modified, err := store.ModifiedTracks(ctx, file.ID)
	if err != nil {
		t.Fatalf("ModifiedTracks failed: %v", err)
	}
	if len(modified) != 1 || modified[0].Edit.Title != "Japanese Stereo" || !modified[0].Edit.Modified {
		t.Fatalf("unexpected modified tracks: %#v", modified)
	}

	pending, err := store.FileByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("FileByID failed: %v", err)
	}
	if pending.ProcessStatus != catalog.ProcessPending {
		t.Fatalf("expected pending process status, got %s", pending.ProcessStatus)
	}

	if err := store.StageTrackEdit(ctx, stored[0].ID+999, "x", "y"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing track, got %v", err)
	}
}

func TestEnqueueJobIsSingleFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Alien (1979).mkv")

	job, err := store.EnqueueJob(ctx, file.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if job.Status != catalog.JobQueued {
		t.Fatalf("expected queued job, got %s", job.Status)
	}

	if _, err := store.EnqueueJob(ctx, file.ID); !errors.Is(err, catalog.ErrActiveJobExists) {
		t.Fatalf("expected ErrActiveJobExists, got %v", err)
	}

	// Still blocked while the job is processing.
	if _, err := store.ClaimJob(ctx, job.ID); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if _, err := store.EnqueueJob(ctx, file.ID); !errors.Is(err, catalog.ErrActiveJobExists) {
		t.Fatalf("expected ErrActiveJobExists while processing, got %v", err)
	}

	// A terminal job unblocks re-enqueueing.
	if err := store.CompleteJob(ctx, job.ID, nil); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	if _, err := store.EnqueueJob(ctx, file.ID); err != nil {
		t.Fatalf("expected enqueue after completion, got %v", err)
	}
}

func TestClaimJobGuardsStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Brazil (1985).mkv")
	job, err := store.EnqueueJob(ctx, file.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := store.ClaimJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if claimed.Status != catalog.JobProcessing || claimed.StartedAt == nil {
		t.Fatalf("unexpected claimed job: %#v", claimed)
	}

	owner, err := store.FileByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("FileByID failed: %v", err)
	}
	if owner.ProcessStatus != catalog.ProcessProcessing {
		t.Fatalf("expected processing file, got %s", owner.ProcessStatus)
	}

	if _, err := store.ClaimJob(ctx, job.ID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected second claim to lose, got %v", err)
	}
}

func TestCompleteJobClearsAppliedEdits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Stalker (1979).mkv")
	tracks := []catalog.Track{
		{Kind: catalog.TrackAudio, Index: 0, Original: catalog.TrackFacts{Language: "rus", Codec: "ac3", Channels: 2}},
	}
	if err := store.CompleteFileScan(ctx, file.ID, catalog.ProbeUpdate{MediaType: catalog.MediaTypeMovie, Title: "Stalker"}, true, tracks); err != nil {
		t.Fatalf("CompleteFileScan failed: %v", err)
	}
	stored, err := store.TracksForFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("TracksForFile failed: %v", err)
	}
	if err := store.StageTrackEdit(ctx, stored[0].ID, "Russian", "rus"); err != nil {
		t.Fatalf("StageTrackEdit failed: %v", err)
	}

	job, err := store.EnqueueJob(ctx, file.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.ClaimJob(ctx, job.ID); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if err := store.CompleteJob(ctx, job.ID, []int64{stored[0].ID}); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	modified, err := store.ModifiedTracks(ctx, file.ID)
	if err != nil {
		t.Fatalf("ModifiedTracks failed: %v", err)
	}
	if len(modified) != 0 {
		t.Fatalf("expected edits cleared, got %#v", modified)
	}

	done, err := store.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if done.Status != catalog.JobCompleted || done.Progress != 100 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed job: %#v", done)
	}
	owner, err := store.FileByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("FileByID failed: %v", err)
	}
	if owner.ProcessStatus != catalog.ProcessCompleted {
		t.Fatalf("expected completed file, got %s", owner.ProcessStatus)
	}
}

func TestFailAndRetryJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/Solaris (1972).mkv")
	job, err := store.EnqueueJob(ctx, file.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.ClaimJob(ctx, job.ID); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if err := store.FailJob(ctx, job.ID, "ffmpeg exited with status 1"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}

	failed, err := store.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if failed.Status != catalog.JobFailed || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failed job: %#v", failed)
	}
	owner, err := store.FileByID(ctx, file.ID)
	if err != nil {
		t.Fatalf("FileByID failed: %v", err)
	}
	if owner.ProcessStatus != catalog.ProcessError {
		t.Fatalf("expected errored file, got %s", owner.ProcessStatus)
	}

	retried, err := store.RetryJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("RetryJob failed: %v", err)
	}
	if retried.Status != catalog.JobQueued || retried.ErrorMessage != "" || retried.StartedAt != nil {
		t.Fatalf("unexpected retried job: %#v", retried)
	}
}

func TestRequeueOrphans(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	first := newFile(t, store, folder.ID, "/media/movies/a.mkv")
	second := newFile(t, store, folder.ID, "/media/movies/b.mkv")

	jobA, err := store.EnqueueJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	jobB, err := store.EnqueueJob(ctx, second.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.ClaimJob(ctx, jobA.ID); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if err := store.SetJobTempPath(ctx, jobA.ID, "/tmp/curator-job-a"); err != nil {
		t.Fatalf("SetJobTempPath failed: %v", err)
	}

	orphans, err := store.RequeueOrphans(ctx)
	if err != nil {
		t.Fatalf("RequeueOrphans failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != jobA.ID {
		t.Fatalf("unexpected orphans: %#v", orphans)
	}
	if orphans[0].TempPath != "/tmp/curator-job-a" {
		t.Fatalf("expected orphan to report dead worker temp path, got %q", orphans[0].TempPath)
	}

	requeued, err := store.JobByID(ctx, jobA.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if requeued.Status != catalog.JobQueued || requeued.StartedAt != nil || requeued.TempPath != "" {
		t.Fatalf("unexpected requeued job: %#v", requeued)
	}

	untouched, err := store.JobByID(ctx, jobB.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if untouched.Status != catalog.JobQueued {
		t.Fatalf("expected queued job untouched, got %s", untouched.Status)
	}
}

func TestNextQueuedJobIsFIFO(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	first := newFile(t, store, folder.ID, "/media/movies/a.mkv")
	second := newFile(t, store, folder.ID, "/media/movies/b.mkv")

	jobA, err := store.EnqueueJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if _, err := store.EnqueueJob(ctx, second.ID); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	next, err := store.NextQueuedJob(ctx)
	if err != nil {
		t.Fatalf("NextQueuedJob failed: %v", err)
	}
	if next.ID != jobA.ID {
		t.Fatalf("expected oldest job %d first, got %d", jobA.ID, next.ID)
	}
}

func TestSettingsSeedAndOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	defaults := []catalog.Setting{
		{Key: "max_concurrent_jobs", Value: "1", Description: "Maximum simultaneous processing jobs"},
		{Key: "scan_interval", Value: "3600", Description: "Seconds between periodic scans"},
	}
	if err := store.SeedSettings(ctx, defaults); err != nil {
		t.Fatalf("SeedSettings failed: %v", err)
	}

	if err := store.SetSetting(ctx, "max_concurrent_jobs", "4", ""); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	// Seeding again must not clobber the operator override.
	if err := store.SeedSettings(ctx, defaults); err != nil {
		t.Fatalf("second SeedSettings failed: %v", err)
	}
	value, err := store.GetSetting(ctx, "max_concurrent_jobs")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "4" {
		t.Fatalf("expected override preserved, got %q", value)
	}

	// Empty description keeps the seeded one.
	all, err := store.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	for _, setting := range all {
		if setting.Key == "max_concurrent_jobs" && setting.Description == "" {
			t.Fatalf("expected description preserved: %#v", setting)
		}
	}

	if _, err := store.GetSetting(ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetSettingInsertsNewRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Insert path: the key has never been seeded, so the row is created from
	// scratch and must satisfy every NOT NULL column.
	if err := store.SetSetting(ctx, "temp_directory", "/scratch", "Working directory for jobs"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}

	value, err := store.GetSetting(ctx, "temp_directory")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if value != "/scratch" {
		t.Fatalf("expected /scratch, got %q", value)
	}

	all, err := store.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one settings row, got %d", len(all))
	}
	if all[0].UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps recorded: %#v", all[0])
	}
}

func TestSummarizeCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	folder := testsupport.NewFolder(t, store, "/media/movies", "Movies")
	file := newFile(t, store, folder.ID, "/media/movies/a.mkv")
	if err := store.CompleteFileScan(ctx, file.ID, catalog.ProbeUpdate{MediaType: catalog.MediaTypeMovie, Title: "A"}, true, nil); err != nil {
		t.Fatalf("CompleteFileScan failed: %v", err)
	}
	newFile(t, store, folder.ID, "/media/movies/b.mkv")
	if _, err := store.EnqueueJob(ctx, file.ID); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	summary, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Folders != 1 || summary.Files != 2 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if summary.FilesScanned != 1 || summary.FilesScanning != 1 {
		t.Fatalf("unexpected scan counts: %#v", summary)
	}
	if summary.Jobs[catalog.JobQueued] != 1 {
		t.Fatalf("unexpected job counts: %#v", summary.Jobs)
	}
}
