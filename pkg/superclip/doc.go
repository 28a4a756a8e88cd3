// Package superclip provides a temporary clipboard and file-sharing
// library with pluggable storage backends.
//
// Clips are short-lived records carrying either inline text or a
// reference to an uploaded blob. Every clip is scoped to an owner
// (an opaque environment identifier), expires at a fixed time, and
// is destroyed once its download limit is reached. Clips can be
// retrieved by ID, by a short globally unique access code, or by a
// persistent token bound to an owner through a separate token record.
//
// Basic usage:
//
//	repo := memory.New(memory.Config{Blobs: blobs})
//	svc, err := superclip.New(
//		superclip.WithRepository(repo),
//		superclip.WithBlobStore(blobs),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	clip, err := svc.CreateClip(ctx, superclip.CreateClipRequest{
//		Kind:      superclip.ClipKindText,
//		ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
//		OwnerID:   "device-1234",
//		Text:      "hello",
//	})
//
// The package provides three repository implementations (in-memory,
// SQLite, PostgreSQL) and three blob store implementations (in-memory,
// filesystem, S3). All of them implement the Repository and BlobStore
// interfaces defined here, so they can be mixed freely.
package superclip
