// Package storage manages the local library.
//
// Every item gets a folder under the library root named after its page URL.
// The folder holds the video as <folder>.mp4 together with the cached item
// page and its details. Manager indexes existing videos on start so items
// already mirrored can be skipped, and writes metadata files atomically
// through a temporary file and a rename.
//
//	lib, err := storage.NewManager(root)
//	if err != nil {
//	    return err
//	}
//	if !lib.HasVideo(folder) {
//	    // download to lib.VideoPath(folder)
//	}
package storage
