/*
Package synth is a realtime music synthesis engine built around a pull based
signal graph.

# Concept

Every piece of the engine is a node of an acyclic graph. Nodes play up to
three roles:

	Generator - writes one or more Channels;
	Consumer - reads one or more Channels;
	Filter - reads Channels and writes Channels for the same time step.

Channels carry either audio samples or batches of musical events, one value
per time step. Reading a time step that was not produced yet lazily ticks
the generator that owns the Channel, so the whole graph is evaluated by
pulling from its terminal consumers.

# Engine

Engine is the context object shared by all nodes. It is constructed
explicitly and passed to node constructors:

	e, err := synth.New(
	    synth.WithSampleRate(44100),
	    synth.WithBlockSize(512),
	    synth.WithLogger(log.GetLogger()),
	)

Engine owns the timing.Manager, the single authority of sample time. The
manager drives registered consumers once per step: event consumers first,
audio consumers next.

# Execution

Run executes the realtime loop until the context is done or a node aborts
the engine with a fatal hardware error:

	err := e.Run(ctx)

Pause and Resume are cooperative: they take effect at the next step
boundary and return a channel which is closed once the transition is done:

	err := synth.Wait(e.Pause())

Pull based outputs, which are driven by the audio device callback, call Step
instead of Run.

# Time

Asynchronous sources, like a MIDI port, never touch the graph directly.
They project wall clock time into sample time with timing.Manager.Project
and use per-node schedule.Scheduler queues to pin state transitions to an
exact future step.
*/
package synth
