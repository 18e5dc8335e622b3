// Package channel turns a polled, eventually-consistent store into a
// command-addressed mailbox with request/response semantics.
//
// A Client runs one background poll loop over an injected Seeker and
// resolves Access calls as their commands arrive; SendToServer pushes
// batches through an injected Sender. A Server answers from a fixed
// snapshot of inbound commands and accumulates outputs.
//
// # Client lifecycle
//
//	c := channel.NewClient(ctx,
//	    channel.WithSeeker(seek),
//	    channel.WithSender(send),
//	    channel.WithMinInterval(2*time.Second),
//	)
//	defer c.Finish("done")
//
//	if err := c.SendToServer(ctx, command.List{{Command: "op1__start", Tree: t}}); err != nil {
//	    return err
//	}
//	reply, err := c.Access(ctx, "op1__reply")
//
// Only one Access may wait on a command at a time; a second concurrent
// call fails with ErrDuplicateWaiter. A waiter resolves only from a
// delivery made after it was registered. Delivered values stay readable
// through Latest until Evict.
//
// The loop stops for good when Finish is called, when the constructor
// context is cancelled, or when the Seeker or Mapper returns an error. Any
// waiter still pending is rejected with the reason.
package channel
