package hymnplay

import "time"

// Perform plays the loaded hymn start to finish: the introduction when one
// is marked and enabled, then every verse, honoring ritardando and Da Capo
// al Fine markers along the way. It blocks until the performance completes
// and returns ErrInterrupted when cut short by Interrupt.
func (p *Player) Perform() error {
	p.state.Reset()
	p.interrupted.Store(false)
	p.sync.Reset()
	for _, w := range p.score.Meta.Warnings {
		p.sendEvent(PlaybackEvent{Kind: EventWarning, Text: w})
	}

	if err := p.playIntro(); err != nil {
		return err
	}
	if err := p.playVerses(); err != nil {
		return err
	}
	p.sendEvent(PlaybackEvent{Kind: EventFinished})
	return p.engine.Err()
}

// playIntro runs the marked introduction once: seek to the first segment and
// play, leaving it to the marker interpreter to chain the remaining segments
// and finish the section. Afterwards the speed decay from an intro
// ritardando is undone and the engine rewound for verse one.
func (p *Player) playIntro() error {
	if !p.cfg.playIntro {
		return nil
	}
	segs := p.score.Meta.Segments

	p.state.SetPlayingIntro(true)
	p.state.SetRitardando(false)
	p.dir.ResetIntroCursor()
	p.engine.GoToTick(segs[0].Start)
	p.sendEvent(PlaybackEvent{Kind: EventIntroStarted})
	p.engine.Play()
	if err := p.waitSection(); err != nil {
		return err
	}

	p.state.SetPlayingIntro(false)
	p.state.SetRitardando(false)
	p.engine.SetSpeed(p.baseTempo * p.baseSpeed)
	p.engine.Rewind()
	p.pauseBetween()
	return nil
}

// playVerses runs every verse, rewinding and pausing between them. A Da
// Capo al Fine marker during the last verse queues one extra replay, played
// with whatever ritardando decay is still in effect, ending at the Fine
// marker.
func (p *Player) playVerses() error {
	n := p.score.Meta.Verses
	for v := 1; v <= n; v++ {
		last := v == n
		p.state.SetRitardando(false)
		p.engine.SetSpeed(p.baseTempo * p.baseSpeed)
		if last {
			p.state.SetLastVerse(true)
		}
		p.sendEvent(PlaybackEvent{Kind: EventVerseStarted, Verse: v, Last: last})
		p.engine.Play()
		if err := p.waitSection(); err != nil {
			return err
		}
		if !last {
			p.engine.Rewind()
			p.pauseBetween()
		}
		if p.state.AlternateEnding() {
			p.engine.Rewind()
			p.engine.Play()
			if err := p.waitSection(); err != nil {
				return err
			}
		}
	}
	return nil
}

// waitSection blocks until the engine reports the playing section done. On
// interrupt it silences whatever is still sounding before failing.
func (p *Player) waitSection() error {
	p.sync.Wait()
	if p.interrupted.Load() {
		p.engine.NotesOff()
		return ErrInterrupted
	}
	return nil
}

// pauseBetween idles the gap separating sections: an explicit verse delay
// when one was configured, otherwise the file's pause directive converted to
// real time at the file tempo.
func (p *Player) pauseBetween() {
	if p.cfg.hasDelay {
		time.Sleep(p.cfg.verseDelay)
		return
	}
	ticks, ok := p.score.Meta.PauseTicks.Value()
	if !ok {
		return
	}
	time.Sleep(time.Duration(int64(ticks)*p.score.USecPerTick()) * time.Microsecond)
}
