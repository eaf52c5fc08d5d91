// Package av runs the per-session avatar pipelines.
//
// A Session is the context object for one call. It owns the beauty and
// voice settings stores, the expression tracker and smoother, and the
// image cache; nothing is process-wide. Two independent tasks hang off a
// session and never share per-frame state:
//
//   - VideoTask: tracker → smoother → {compositor, pose driver}, plus the
//     beauty filter over the camera frame. One Tick per display frame.
//   - AudioTask: RTP/Opus → block assembly → pitch shifter. One Process
//     per audio block.
//
// # Session Usage
//
//	session := av.NewSession(av.DefaultSessionConfig(), nil, metrics)
//	defer session.Close()
//
//	videoTask, err := session.NewVideoTask(ctx, rig)
//	if errors.Is(err, av.ErrCapabilityUnavailable) {
//	    // video stays off; audio is unaffected
//	}
//
// # Driving Frames
//
// Hosts with a display clock call Tick from their frame callback. Others
// use Driver:
//
//	driver, _ := av.NewDriver(videoTask, 30)
//	driver.OnFrame(func(f av.VideoFrame) { upload(f.Canvas) })
//	go driver.Run(ctx)
//
// # Task Control
//
// Both tasks expose Pause, Resume and Cancel. A paused VideoTask returns
// ErrTaskPaused from Tick; a paused AudioTask passes audio through. Cancel
// releases the canvas, image handles and ring buffer. Blocks delivered by
// the audio graph after Cancel are copied through untouched.
//
// # Settings
//
// Settings stores publish immutable snapshots. UI-side writers call
// Update with a partial update at any time; each task reads one snapshot
// per frame or block, so changes land on the next one:
//
//	session.Voice().Update(audio.VoiceUpdate{PitchShift: &semitones})
//
// # Metrics
//
// Metrics times every stage, counts frames and blocks that overrun their
// period, and counts image load failures. Collectors live on a private
// prometheus registry exposed through Registry.
package av
