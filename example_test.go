package notesync_test

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
)

// Example_basic signs up, writes two notes and reads them back newest first.
func Example_basic() {
	svc, err := notesync.New("",
		notesync.WithAdapter(notesync.AdapterMemory),
		notesync.WithBcryptCost(bcrypt.MinCost),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()
	svc.Start()

	ctx := context.Background()
	if err := svc.Sessions().Register(ctx, "Gopher", "gopher@example.com", "secret1"); err != nil {
		log.Fatal(err)
	}
	uid := svc.Sessions().Current().UID()

	for _, title := range []string{"First", "Second"} {
		if _, err := svc.Notes().Create(ctx, uid, title, ""); err != nil {
			log.Fatal(err)
		}
	}

	done := make(chan []core.Note, 1)
	sub := svc.Notes().Subscribe(uid, func(notes []core.Note) {
		if len(notes) == 2 {
			select {
			case done <- notes:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	list, err := svc.Navigator().NoteList()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(list.Greeting())
	for _, n := range <-done {
		fmt.Println(n.DisplayTitle(), "-", n.DisplayContent())
	}

	// Output:
	// @Gopher
	// Second - No content
	// First - No content
}
