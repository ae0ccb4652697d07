// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text


package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock attitude source generating a gentle sway,
// useful for bench runs without the IMU attached.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := time.Since(m.start).Seconds()

	return Pose{
		Roll:  5 * math.Sin(elapsed*0.5),
		Pitch: 4 * math.Cos(elapsed*0.3),
		Yaw:   math.Mod(elapsed*2, 360),
	}, nil
}
