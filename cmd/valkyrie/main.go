// Command valkyrie packs, inspects and unpacks sealed .vpk archives from
// the command line, and writes file manifests for directory trees.
//
//	valkyrie create   --dir assets [--archive assets.vpk]
//	valkyrie read     --archive assets.vpk [--dir out]
//	valkyrie info     --archive assets.vpk
//	valkyrie update   --dir patch --archive assets.vpk
//	valkyrie manifest --dir assets [--full]
//
// The sealing key is derived from --secret and --salt; with no secret
// given, the machine identifier stands in so archives stay bound to the
// host that wrote them.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ValkyFischer/ValkyrieUtils/compressor"
	"github.com/ValkyFischer/ValkyrieUtils/config"
	"github.com/ValkyFischer/ValkyrieUtils/crypto"
	"github.com/ValkyFischer/ValkyrieUtils/logger"
	"github.com/ValkyFischer/ValkyrieUtils/manifest"
	"github.com/ValkyFischer/ValkyrieUtils/options"
	"github.com/ValkyFischer/ValkyrieUtils/tools"
	"github.com/ValkyFischer/ValkyrieUtils/vpk"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "valkyrie:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	parser, err := options.New(
		options.Option{Name: "config", Type: "str", Help: "configuration file (.ini or .xml)"},
		options.Option{Name: "secret", Type: "str", Help: "key derivation secret; machine id when empty"},
		options.Option{Name: "salt", Type: "str", Help: "key derivation salt", Default: "ValkyrieUtils"},
		options.Option{Name: "dir", Type: "str", Help: "directory to pack, or unpack target"},
		options.Option{Name: "archive", Type: "str", Help: "archive path"},
		options.Option{Name: "encryption", Type: "str", Help: "cipher mode: AES-GCM, AES-CTR or AES-CBC", Default: crypto.ModeGCM.String()},
		options.Option{Name: "compression", Type: "str", Help: "codec: none, gzip, bzip2, lzma, lz4, zstd or br", Default: compressor.CodecZstd.String()},
		options.Option{Name: "full", Type: "bool", Help: "manifest entries carry size and date"},
		options.Option{Name: "log-level", Type: "str", Help: "debug, info, warning, error or critical", Default: "info"},
		options.Option{Name: "log-file", Type: "str", Help: "duplicate log output into this file"},
	)
	if err != nil {
		return err
	}
	v, err := parser.Parse(args)
	if err != nil {
		fmt.Fprint(os.Stderr, usage(parser))
		return err
	}
	if len(v.Args()) != 1 {
		fmt.Fprint(os.Stderr, usage(parser))
		return errors.New("expected exactly one verb")
	}
	verb := v.Args()[0]

	// Config file values fill in flags left at their defaults.
	secret := v.String("secret")
	salt := v.String("salt")
	encName := v.String("encryption")
	codecName := v.String("compression")
	level := v.String("log-level")
	if path := v.String("config"); path != "" {
		cfg, err := config.Open(path)
		if err != nil {
			return err
		}
		if !v.Changed("secret") {
			secret = cfg.String("crypto", "secret", secret)
		}
		if !v.Changed("salt") {
			salt = cfg.String("crypto", "salt", salt)
		}
		if !v.Changed("encryption") {
			encName = cfg.String("package", "encryption", encName)
		}
		if !v.Changed("compression") {
			codecName = cfg.String("package", "compression", codecName)
		}
		if !v.Changed("log-level") {
			level = cfg.String("logger", "level", level)
		}
	}

	logOpts := []logger.Option{logger.WithApp("valkyrie"), logger.WithColors()}
	if file := v.String("log-file"); file != "" {
		logOpts = append(logOpts, logger.WithFile(file))
	}
	log, err := logger.New(level, logOpts...)
	if err != nil {
		return err
	}

	if verb == "manifest" {
		return runManifest(v, log)
	}

	if secret == "" {
		id, err := tools.MachineID()
		if err != nil {
			return fmt.Errorf("--secret not set and no machine id available: %w", err)
		}
		log.Debug("deriving key from machine id")
		secret = id
	}
	key, err := crypto.DeriveKey(secret, salt, crypto.DefaultParams())
	if err != nil {
		return err
	}
	mode, err := crypto.ParseMode(encName)
	if err != nil {
		return err
	}
	codec, err := compressor.ParseCodec(codecName)
	if err != nil {
		return err
	}
	pkg := vpk.New(key, vpk.WithEncryption(mode), vpk.WithCompression(codec), vpk.WithLogger(log))

	switch verb {
	case "create":
		return runCreate(v, log, pkg)
	case "read":
		return runRead(v, log, pkg)
	case "info":
		return runInfo(v, pkg)
	case "update":
		return runUpdate(v, log, pkg)
	default:
		fmt.Fprint(os.Stderr, usage(parser))
		return fmt.Errorf("unknown verb %q", verb)
	}
}

func runCreate(v *options.Values, log *logrus.Logger, pkg *vpk.Package) error {
	dir := v.String("dir")
	if dir == "" {
		return errors.New("create needs --dir")
	}
	path, err := pkg.Create(dir, v.String("archive"))
	if err != nil {
		return err
	}
	size, err := tools.FileSize(path)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"archive": path,
		"size":    tools.FormatSize(size),
	}).Info("archive created")
	return nil
}

func runRead(v *options.Values, log *logrus.Logger, pkg *vpk.Package) error {
	archive := v.String("archive")
	if archive == "" {
		return errors.New("read needs --archive")
	}
	dir := v.String("dir")
	if dir == "" {
		dir = strings.TrimSuffix(archive, vpk.Extension)
	}
	blobs, err := pkg.Read(archive)
	if err != nil {
		return err
	}
	for key, data := range blobs {
		// Blob keys come from the archive; never let one climb out of
		// the unpack directory.
		if !filepath.IsLocal(filepath.FromSlash(key)) {
			log.WithField("file", key).Warn("skipping non-local path")
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"archive": archive,
		"files":   len(blobs),
		"dir":     dir,
	}).Info("archive unpacked")
	return nil
}

func runInfo(v *options.Values, pkg *vpk.Package) error {
	archive := v.String("archive")
	if archive == "" {
		return errors.New("info needs --archive")
	}
	h, err := pkg.Info(archive)
	if err != nil {
		return err
	}
	fmt.Printf("Name:        %s\n", h.Name)
	fmt.Printf("Info:        %s\n", h.Info)
	fmt.Printf("Author:      %s\n", h.Author)
	fmt.Printf("Copyright:   %s\n", h.Copyright)
	fmt.Printf("Created:     %s\n", time.Unix(int64(h.Timestamp), 0).Format(time.DateTime))
	fmt.Printf("Version:     %d\n", h.Version)
	fmt.Printf("Encryption:  %s (%d byte key)\n", h.Encryption, h.KeyLength)
	fmt.Printf("Compression: %s\n", h.Compression)
	fmt.Printf("Payload:     %s\n", tools.FormatSize(int64(h.PayloadSize)))
	return nil
}

func runUpdate(v *options.Values, log *logrus.Logger, pkg *vpk.Package) error {
	dir, archive := v.String("dir"), v.String("archive")
	if dir == "" || archive == "" {
		return errors.New("update needs --dir and --archive")
	}
	patch, err := readTree(dir)
	if err != nil {
		return err
	}
	path, err := pkg.Update(patch, archive)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"archive": path,
		"files":   len(patch),
	}).Info("archive updated")
	return nil
}

func runManifest(v *options.Values, log *logrus.Logger) error {
	dir := v.String("dir")
	if dir == "" {
		return errors.New("manifest needs --dir")
	}
	opts := []manifest.Option{manifest.WithLogger(log)}
	if v.Bool("full") {
		opts = append(opts, manifest.WithFull())
	}
	gen := manifest.New(dir, opts...)
	m, err := gen.Generate()
	if err != nil {
		return err
	}
	path, err := gen.Save(m)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"manifest": path,
		"files":    len(m),
	}).Info("manifest written")
	return nil
}

// readTree loads every file below dir keyed by its slash-separated
// relative path, the shape vpk archives carry.
func readTree(dir string) (vpk.BlobSet, error) {
	files, err := tools.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	blobs := make(vpk.BlobSet, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(dir, filepath.FromSlash(file))
		if err != nil {
			return nil, err
		}
		data, err := tools.FileData(filepath.FromSlash(file))
		if err != nil {
			return nil, err
		}
		blobs[filepath.ToSlash(rel)] = data
	}
	return blobs, nil
}

func usage(p *options.Parser) string {
	var b strings.Builder
	b.WriteString("usage: valkyrie [flags] <verb>\n\n")
	b.WriteString("verbs:\n")
	b.WriteString("  create    pack --dir into a new archive\n")
	b.WriteString("  read      unpack --archive into --dir\n")
	b.WriteString("  info      print the archive header\n")
	b.WriteString("  update    merge --dir into an existing archive\n")
	b.WriteString("  manifest  write a file manifest for --dir\n\n")
	b.WriteString("flags:\n")
	b.WriteString(p.Usage())
	return b.String()
}
