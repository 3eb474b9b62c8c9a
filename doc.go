// Package puppet controls a motorized string puppet whose limbs hang from
// hobby servos.
//
// Poses and sequences are described in JSON files and played back on a PCA9685
// PWM board or a Feetech bus servo chain.
//
// # Installation
//
//	go install github.com/gwillem/puppet/cmd/puppet@latest
//
// # Usage
//
// Identify which servo is wired to which channel:
//
//	puppet setup
//
// Then play something:
//
//	puppet pose arms_raised
//	puppet seq greeting
//	puppet interactive
//
// Use --dry-run to try any command without hardware.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/puppet: CLI with setup, playback, monitor and serve commands
//   - pkg/servo: Servo drivers and paced motion
//   - pkg/puppet: Limbs, gestures and configuration
//   - pkg/choreo: Pose and sequence definitions
//   - pkg/sequencer: Pose and sequence playback and the interactive loop
//   - pkg/player: Background playback with live joint angles
//   - pkg/server: HTTP remote control
//   - pkg/logging, pkg/metrics: Logging and Prometheus metrics
package puppet
