package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/yapper/campaign/internal/client"
	"github.com/yapper/campaign/internal/model"
	"github.com/yapper/campaign/internal/stream"
)

var (
	// ErrCallInFlight means another forward trigger is unresolved; the
	// second trigger is a no-op until the first settles.
	ErrCallInFlight = errors.New("another call is in flight")
	// ErrWrongStage means the requested action is not valid for the
	// current campaign stage.
	ErrWrongStage = errors.New("action not allowed in current stage")
	// ErrInvalidInput is a local validation failure, rejected before any
	// remote call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoSelection means generation was requested with no highlights.
	ErrNoSelection = errors.New("no highlights selected")
)

// Publisher receives campaign events for the frontend push channel. All
// methods must be non-blocking; a nil Publisher is allowed.
type Publisher interface {
	PublishStage(state model.CampaignState)
	PublishStatus(update model.StatusUpdate)
	PublishStreamError(jobID, message string)
}

// Orchestrator owns the campaign state aggregate and every transition
// between stages. All mutation goes through whole-stage transition methods
// under one lock; the stream supervisor never touches the state directly.
type Orchestrator struct {
	ctx context.Context
	api client.API
	sup *stream.Supervisor
	pub Publisher

	mu        sync.Mutex
	state     model.CampaignState
	busy      bool
	attachSeq uint64
	handle    *stream.Handle
}

// New creates an orchestrator with a fresh campaign. ctx bounds the
// lifetime of every stream attachment.
func New(ctx context.Context, api client.API, sup *stream.Supervisor, pub Publisher) *Orchestrator {
	return &Orchestrator{
		ctx:   ctx,
		api:   api,
		sup:   sup,
		pub:   pub,
		state: model.NewCampaignState(),
	}
}

// State returns a snapshot of the campaign.
func (o *Orchestrator) State() model.CampaignState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// SubmitURL runs the extraction stage: validate the source URL locally,
// call the extraction service, store the candidates, and advance to
// highlight selection.
func (o *Orchestrator) SubmitURL(ctx context.Context, videoURL, subtitleLanguage string, noAutoSubs bool) error {
	if _, err := model.ExtractVideoID(videoURL); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if subtitleLanguage == "" {
		subtitleLanguage = "en"
	}

	if err := o.begin(model.StageURLSubmit); err != nil {
		return err
	}
	defer o.end()

	resp, err := o.api.ExtractHighlights(ctx, &client.HighlightsRequest{
		VideoURL:         videoURL,
		SubtitleLanguage: subtitleLanguage,
		NoAutoSubs:       noAutoSubs,
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.SourceURL = videoURL
	o.state.VideoID = resp.VideoID
	o.state.Candidates = append([]model.HighlightSegment(nil), resp.Highlights...)
	o.state.Chosen = nil
	o.state.Stage = model.StageHighlightsSelect
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// StartGeneration commits the chosen highlights, starts the remote
// generation job, and attaches the status stream.
func (o *Orchestrator) StartGeneration(ctx context.Context, highlightIDs []string) error {
	if err := o.begin(model.StageHighlightsSelect); err != nil {
		return err
	}
	defer o.end()

	o.mu.Lock()
	chosen, err := chooseSegments(o.state.Candidates, highlightIDs)
	sourceURL := o.state.SourceURL
	o.mu.Unlock()
	if err != nil {
		return err
	}

	resp, err := o.api.GenerateVideos(ctx, &client.GenerateRequest{
		VideoURL:   sourceURL,
		Highlights: chosen,
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.Chosen = chosen
	o.state.JobID = resp.JobID
	o.state.JobError = ""
	o.state.StreamDown = false
	o.state.LastUpdate = nil
	o.state.Artifacts = nil
	o.state.Stage = model.StageJobStatus
	o.attachLocked()
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// UploadReels publishes the produced artifacts, titled after their
// originating highlights, and advances to the DM stage.
func (o *Orchestrator) UploadReels(ctx context.Context) error {
	if err := o.begin(model.StageUploadReels); err != nil {
		return err
	}
	defer o.end()

	o.mu.Lock()
	reels := buildReelUploads(o.state.Artifacts, o.state.Chosen)
	o.mu.Unlock()
	if len(reels) == 0 {
		return fmt.Errorf("%w: no artifacts to upload", ErrInvalidInput)
	}

	resp, err := o.api.UploadReels(ctx, &client.UploadReelsRequest{ReelsToUpload: reels})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.ReelLinks = append([]string(nil), resp.ReelLinks...)
	o.state.Stage = model.StageDMFollowers
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// SendFollowerDMs fetches the follower list and sends the published links,
// recording per-follower delivery status. The stage stays at dm-followers
// until the user acknowledges the results.
func (o *Orchestrator) SendFollowerDMs(ctx context.Context) error {
	if err := o.begin(model.StageDMFollowers); err != nil {
		return err
	}
	defer o.end()

	o.mu.Lock()
	links := append([]string(nil), o.state.ReelLinks...)
	o.mu.Unlock()
	if len(links) == 0 {
		return fmt.Errorf("%w: no reel links to send", ErrInvalidInput)
	}

	followers, err := o.api.GetFollowers(ctx)
	if err != nil {
		return err
	}
	dm, err := o.api.DMFollowers(ctx, &client.DMFollowersRequest{
		ReelLinks: links,
		Followers: followers.Followers,
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.state.Followers = append([]string(nil), followers.Followers...)
	o.state.DMStatus = dm.DMStatus
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// Acknowledge confirms the distribution results and completes the campaign.
func (o *Orchestrator) Acknowledge() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrCallInFlight
	}
	if o.state.Stage != model.StageDMFollowers {
		stage := o.state.Stage
		o.mu.Unlock()
		return fmt.Errorf("%w: expected stage %s, currently %s", ErrWrongStage, model.StageDMFollowers, stage)
	}
	o.state.Stage = model.StageComplete
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// StartNew discards the finished campaign and begins a fresh one.
func (o *Orchestrator) StartNew() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrCallInFlight
	}
	if o.state.Stage != model.StageComplete {
		stage := o.state.Stage
		o.mu.Unlock()
		return fmt.Errorf("%w: expected stage %s, currently %s", ErrWrongStage, model.StageComplete, stage)
	}
	o.state = model.NewCampaignState()
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// Back takes one backward step, resetting only the state owned by the
// stages being abandoned. Leaving job-status releases the stream
// synchronously, so no update for the abandoned job can land in a later
// stage's state.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrCallInFlight
	}

	var abandonedJob string
	switch o.state.Stage {
	case model.StageHighlightsSelect:
		o.state.Chosen = nil
		o.state.JobID = ""
		o.state.Stage = model.StageURLSubmit

	case model.StageJobStatus:
		o.releaseStreamLocked()
		abandonedJob = o.state.JobID
		o.state.JobID = ""
		o.state.LastUpdate = nil
		o.state.JobError = ""
		o.state.StreamDown = false
		o.state.Artifacts = nil
		o.state.Stage = model.StageHighlightsSelect

	case model.StageUploadReels:
		// Returning to the job view does not resume the stream; the last
		// snapshot is still on the state.
		o.state.Stage = model.StageJobStatus

	case model.StageDMFollowers:
		o.state.Followers = nil
		o.state.DMStatus = nil
		o.state.Stage = model.StageUploadReels

	default:
		stage := o.state.Stage
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot go back from %s", ErrWrongStage, stage)
	}
	snapshot := o.state.Clone()
	o.mu.Unlock()

	if abandonedJob != "" {
		// Best effort; re-entering generation starts a fresh job anyway.
		go o.discardJob(abandonedJob)
	}
	o.publishStage(snapshot)
	return nil
}

// RestartStream re-attaches the status stream after a terminal stream
// failure, with a fresh retry budget.
func (o *Orchestrator) RestartStream() error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrCallInFlight
	}
	if o.state.Stage != model.StageJobStatus || o.state.JobID == "" {
		stage := o.state.Stage
		o.mu.Unlock()
		return fmt.Errorf("%w: no active generation job in stage %s", ErrWrongStage, stage)
	}
	o.releaseStreamLocked()
	o.state.StreamDown = false
	o.attachLocked()
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStage(snapshot)
	return nil
}

// begin acquires the single in-flight slot after checking the stage gate.
func (o *Orchestrator) begin(stage model.Stage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		return ErrCallInFlight
	}
	if o.state.Stage != stage {
		return fmt.Errorf("%w: expected stage %s, currently %s", ErrWrongStage, stage, o.state.Stage)
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// attachLocked starts a supervision session for the current job. Callers
// hold o.mu.
func (o *Orchestrator) attachLocked() {
	o.attachSeq++
	seq := o.attachSeq
	h := o.sup.Attach(o.ctx, o.state.JobID)
	o.handle = h
	go o.consume(h, seq)
}

// releaseStreamLocked invalidates the current attachment and releases its
// handle. Bumping attachSeq first means an update already buffered for the
// old session is discarded on arrival. Callers hold o.mu.
func (o *Orchestrator) releaseStreamLocked() {
	o.attachSeq++
	if o.handle != nil {
		o.handle.Release()
		o.handle = nil
	}
}

func (o *Orchestrator) consume(h *stream.Handle, seq uint64) {
	for ev := range h.Events() {
		switch ev.Kind {
		case stream.EventUpdate:
			o.applyUpdate(seq, ev.Update)
		case stream.EventParseError:
			log.Printf("[Workflow] job %s: ignoring malformed status event: %v", h.JobID(), ev.Err)
		case stream.EventStreamDown:
			o.markStreamDown(seq, h.JobID(), ev.Err)
		}
	}
}

// applyUpdate folds one status snapshot into the campaign state. Each
// snapshot fully replaces the previous one. Terminal snapshots release the
// stream; a finished job with at least one artifact advances the stage.
func (o *Orchestrator) applyUpdate(seq uint64, update model.StatusUpdate) {
	o.mu.Lock()
	if seq != o.attachSeq || o.state.Stage != model.StageJobStatus || update.JobID != o.state.JobID {
		o.mu.Unlock()
		return
	}

	held := update
	o.state.LastUpdate = &held

	stageChanged := false
	switch {
	case update.Status == model.StatusFinished && len(update.FinishedVideos) > 0:
		o.state.Artifacts = append([]string(nil), update.FinishedVideos...)
		o.state.Stage = model.StageUploadReels
		o.releaseStreamLocked()
		stageChanged = true

	case update.Status == model.StatusFinished:
		o.state.JobError = "generation finished without producing any videos"
		o.releaseStreamLocked()

	case update.Status == model.StatusError:
		msg := update.ErrorMessage
		if msg == "" {
			msg = "video generation failed"
		}
		o.state.JobError = msg
		o.releaseStreamLocked()
	}
	snapshot := o.state.Clone()
	o.mu.Unlock()

	o.publishStatus(update)
	if stageChanged {
		o.publishStage(snapshot)
	}
}

func (o *Orchestrator) markStreamDown(seq uint64, jobID string, cause error) {
	o.mu.Lock()
	if seq != o.attachSeq || o.state.Stage != model.StageJobStatus {
		o.mu.Unlock()
		return
	}
	o.state.StreamDown = true
	o.mu.Unlock()

	log.Printf("[Workflow] job %s: status stream gave up: %v", jobID, cause)
	o.publishStreamError(jobID, cause.Error())
}

func (o *Orchestrator) discardJob(jobID string) {
	ctx, cancel := context.WithTimeout(o.ctx, 10*time.Second)
	defer cancel()
	if err := o.api.DeleteJob(ctx, jobID); err != nil {
		log.Printf("[Workflow] failed to discard abandoned job %s: %v", jobID, err)
	}
}

func (o *Orchestrator) publishStage(state model.CampaignState) {
	if o.pub != nil {
		o.pub.PublishStage(state)
	}
}

func (o *Orchestrator) publishStatus(update model.StatusUpdate) {
	if o.pub != nil {
		o.pub.PublishStatus(update)
	}
}

func (o *Orchestrator) publishStreamError(jobID, message string) {
	if o.pub != nil {
		o.pub.PublishStreamError(jobID, message)
	}
}

// chooseSegments resolves the requested IDs against the candidates,
// preserving candidate order and dropping duplicates. Every requested ID
// must name a known candidate.
func chooseSegments(candidates []model.HighlightSegment, ids []string) ([]model.HighlightSegment, error) {
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, fmt.Errorf("%w: unknown highlight id %q", ErrInvalidInput, id)
		}
		want[id] = true
	}

	chosen := make([]model.HighlightSegment, 0, len(want))
	for _, c := range candidates {
		if want[c.ID] {
			chosen = append(chosen, c)
		}
	}
	return chosen, nil
}

// buildReelUploads titles each artifact after its originating highlight,
// falling back to the artifact base name when the name convention does not
// match.
func buildReelUploads(artifacts []string, chosen []model.HighlightSegment) []client.ReelUpload {
	titles := make(map[string]string, len(chosen))
	for _, h := range chosen {
		titles[h.ID] = h.Title
	}

	reels := make([]client.ReelUpload, 0, len(artifacts))
	for _, artifact := range artifacts {
		title := titles[model.HighlightIDFromArtifact(artifact)]
		if title == "" {
			base := path.Base(strings.ReplaceAll(artifact, "\\", "/"))
			title = strings.TrimSuffix(base, path.Ext(base))
		}
		reels = append(reels, client.ReelUpload{FilePath: artifact, Title: title})
	}
	return reels
}
