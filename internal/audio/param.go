package audio

import (
	"math"
	"sort"
)

type eventKind int

const (
	setValue eventKind = iota
	linearRamp
	exponentialRamp
	setTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tau   float64 // setTarget time constant, seconds
}

// Param is a scalar that can be automated against the context clock:
// immediate sets, scheduled sets, ramps and exponential approaches.
// Every exported method takes the context lock.
type Param struct {
	ctx    *Context
	value  float64 // value before the first event
	events []event // sorted by time
}

// Value returns the instantaneous value at the current context time.
func (p *Param) Value() float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(p.ctx.now())
}

// ValueAt returns the value the automation produces at time t.
func (p *Param) ValueAt(t float64) float64 {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return p.valueAt(t)
}

// SetValue sets the value now and drops all scheduled automation.
func (p *Param) SetValue(v float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.value = v
	p.events = p.events[:0]
}

// SetValueAtTime jumps to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: setValue, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v,
// arriving at time t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.anchor()
	p.settleTarget(t)
	p.insert(event{kind: linearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event
// to v, arriving at time t. If either endpoint is zero or they differ in
// sign the start value is held until t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.anchor()
	p.settleTarget(t)
	p.insert(event{kind: exponentialRamp, time: t, value: v})
}

// SetTargetAtTime starts an exponential approach towards target at time
// start with the given time constant in seconds.
func (p *Param) SetTargetAtTime(target, start, timeConstant float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	p.insert(event{kind: setTarget, time: start, value: target, tau: timeConstant})
}

// CancelAndHoldAtTime drops every event at or after t and holds the value
// the automation had reached at t.
func (p *Param) CancelAndHoldAtTime(t float64) {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	v := p.valueAt(t)
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time >= t })
	p.events = append(p.events[:i], event{kind: setValue, time: t, value: v})
}

// Pending reports whether any event is scheduled after time t.
func (p *Param) Pending(t float64) bool {
	p.ctx.mu.Lock()
	defer p.ctx.mu.Unlock()
	return len(p.events) > 0 && p.events[len(p.events)-1].time > t
}

// anchor pins the current value at the current time so a ramp scheduled
// with nothing before it starts from here rather than from time zero.
func (p *Param) anchor() {
	if len(p.events) > 0 {
		return
	}
	now := p.ctx.now()
	p.events = append(p.events, event{kind: setValue, time: now, value: p.value})
}

// settleTarget makes a ramp ending at end that follows a setTarget start
// from the approach's value. A setTarget that has not begun yet is
// replaced by a hold of the value before it; one already running is cut
// at the current time.
func (p *Param) settleTarget(end float64) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > end }) - 1
	if i < 0 || p.events[i].kind != setTarget {
		return
	}
	now := p.ctx.now()
	e := p.events[i]
	if e.time >= now {
		p.events[i] = event{kind: setValue, time: e.time, value: evaluate(p.value, p.events[:i], e.time)}
		return
	}
	p.insert(event{kind: setValue, time: now, value: evaluate(p.value, p.events[:i+1], now)})
}

func (p *Param) insert(e event) {
	i := sort.Search(len(p.events), func(i int) bool { return p.events[i].time > e.time })
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func (p *Param) valueAt(t float64) float64 {
	return evaluate(p.value, p.events, t)
}

// evaluate runs the timeline events, starting from initial, up to time t.
func evaluate(initial float64, events []event, t float64) float64 {
	v, prev := initial, math.Inf(-1)
	for i, e := range events {
		switch e.kind {
		case setValue:
			if e.time > t {
				return v
			}
			v, prev = e.value, e.time
		case linearRamp, exponentialRamp:
			if e.time > t {
				if math.IsInf(prev, -1) {
					return v
				}
				return interpolate(e.kind, prev, v, e.time, e.value, t)
			}
			v, prev = e.value, e.time
		case setTarget:
			if e.time > t {
				return v
			}
			end := t
			if i+1 < len(events) && events[i+1].time < t {
				end = events[i+1].time
			}
			v = approach(v, e.value, end-e.time, e.tau)
			prev = end
			if end == t {
				return v
			}
		}
	}
	return v
}

func interpolate(kind eventKind, t0, v0, t1, v1, t float64) float64 {
	if t1 <= t0 {
		return v1
	}
	frac := (t - t0) / (t1 - t0)
	if kind == linearRamp {
		return v0 + (v1-v0)*frac
	}
	if v0 == 0 || v1 == 0 || (v0 < 0) != (v1 < 0) {
		return v0
	}
	return v0 * math.Pow(v1/v0, frac)
}

func approach(from, target, dt, tau float64) float64 {
	if tau <= 0 {
		return target
	}
	return target + (from-target)*math.Exp(-dt/tau)
}
