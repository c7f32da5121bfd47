/*
Package engine turns a playback description into a gapless 16-bit PCM stream.

A Pool holds a fixed ring of buffers. One generation goroutine acquires the
next buffer in ring order, renders one snapshot of the playback state into it
and submits it to an output.Sink. The sink hands buffers back through
Pool.Release when the device has consumed them; when every buffer is with the
device, Acquire blocks until one comes back.

Example:

	sink, _ := output.New(output.BackendOto, output.Options{})
	eng := engine.New(sink, engine.Config{})
	if err := eng.Start(); err != nil {
		log.Fatal(err)
	}
	defer eng.Stop()

	eng.SetTone(440, synth.Sine, 0.2)

Phase time is a sample counter, so waveforms stay continuous across buffer
boundaries. Buffer preparation or submission failures move the engine to
StateFaulted; Err reports the cause and Start restarts it.
*/
package engine
