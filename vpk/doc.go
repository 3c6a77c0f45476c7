// Package vpk implements the VPK sealed archive format.
//
// A VPK file bundles a set of files into a single compressed, encrypted
// container. Archives are whole-file only: every operation reads or
// writes the complete payload, and there is no random access, streaming
// or in-place mutation.
//
// # File Format Overview
//
// A VPK file consists of:
//   - A 99-byte fixed header: name, info, payload size, author,
//     copyright, timestamp, encryption mode, key length, format version
//     and compression codec. Text fields are zero-padded to fixed
//     widths; numeric fields are little-endian uint32.
//   - The payload: a CBOR blob set (path -> bytes), encrypted into a
//     hex-field envelope, serialized with CBOR, then compressed. The
//     header's PayloadSize is exactly the compressed byte count.
//
// # Basic Usage
//
// To derive a key and pack a directory:
//
//	key, err := crypto.DeriveKey("secret", "salt", crypto.DefaultParams())
//	if err != nil {
//		return err
//	}
//	p := vpk.New(key)
//	path, err := p.Create("./assets", "./assets.vpk")
//
// To read it back:
//
//	blobs, err := p.Read("./assets.vpk")
//
// To patch entries without losing the rest:
//
//	_, err = p.Update(vpk.BlobSet{"notes.txt": []byte("changed")}, "./assets.vpk")
//
// # Security Considerations
//
// Only AES-GCM archives are tamper-evident: a modified payload fails
// decryption with a distinguishable error. AES-CTR and AES-CBC archives
// decrypt without any integrity check. The encryption key never appears
// in the archive; the header records only the mode name and key length.
//
// # Compatibility
//
// A reader refuses archives whose header declares a different encryption
// mode or compression codec than the reader is configured with. A
// differing format version is logged as a warning and the read proceeds:
// version skew is advisory, mode and codec skew are fatal.
package vpk
