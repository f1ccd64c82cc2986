// Package wakeup implements a wake-up source for [oneshot.Registry]
// instances, delivering an [oneshot.Event] to the reply channel of each
// [oneshot.Request], once its delay has elapsed.
//
// A single [Service] may be shared by many registries (one per execution
// context). It runs on its own goroutine, see [Service.Run], and never
// blocks the registries: [Service.ScheduleWake] only appends to a queue, and
// delivery to a full reply channel drops the event, by default. Requests
// are never cancelled, superseded requests are simply delivered, and
// rejected by token on arrival.
package wakeup
