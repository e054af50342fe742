// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package mopaq reads MPQ (Mo'PaQ) archives.

MPQ is an archive format created by Blizzard Entertainment, used in games like
Diablo, StarCraft, and World of Warcraft. This package reads MPQ format
versions 1 and 2, which covers games up through WoW: Wrath of the Lich King
(3.3.5a), including encrypted files, fix-key encryption, sectored and
single-unit storage, and multi-codec sector compression.

# Basic Usage

	archive, err := mopaq.Open("game.mpq")
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	data, err := archive.ReadFile("Interface\\FrameXML\\UIParent.lua")
	if err != nil {
		log.Fatal(err)
	}

For large archives, [OpenMmap] maps the archive into memory instead of
issuing positioned reads. [OpenReaderAt] accepts any io.ReaderAt, which makes
in-memory archives and archives embedded in other containers work.

Handle-based access separates lookup from reading:

	f, err := archive.OpenFile("war3map.j")
	if err != nil {
		log.Fatal(err)
	}
	buf := make([]byte, f.Size())
	if _, err := f.Read(buf); err != nil {
		log.Fatal(err)
	}

Read fills the buffer with the whole file; partial reads are not part of the
contract, reflecting the format's sector granularity.

# Path Conventions

MPQ archives use backslash (\) as the path separator and hash names
case-insensitively. Forward slashes are accepted everywhere and converted:

	archive.HasFile("Data\\SubDir\\file.txt")  // native MPQ form
	archive.HasFile("Data/SubDir/file.txt")    // also works

# Locales

The same filename may exist in several regional variants. [Archive.OpenFile]
resolves the neutral locale; [Archive.OpenFileLocale] requests a specific one
and falls back to the neutral entry if no exact match exists.

# Limitations

  - Archives are read-only; no creation or modification
  - No PKWare implode, huffman, ADPCM or LZMA codecs (such sectors return
    ErrUnsupportedCompression)
  - No patch-archive chaining
  - No digital-signature verification (the (signature) file is parsed only)
  - No MPQ format V3/V4 (Cataclysm+)
*/
package mopaq
