package consts

import "time"

// TargetFrameRate is the redraw and cursor-poll cadence shared by the poll
// thread, the capture threads and the overlay surfaces.
const TargetFrameRate = 120

const TargetFrameDuration = time.Second / TargetFrameRate

// WindowCloseTimeout bounds the close message sent to an overlay window when
// a session is forcibly dismissed.
const WindowCloseTimeout = 500 * time.Millisecond
