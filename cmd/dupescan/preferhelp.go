package main

// preferHelpText documents the --prefer criteria language.
const preferHelpText = `The --prefer option takes a comma-separated list of phrases. Each
phrase narrows the current group of duplicates; files still standing
after the last phrase are marked in the report. A phrase that would
eliminate every remaining file is ignored, so at least one file is
always marked, and evaluation stops early once a single file remains.

A phrase is either a test or a selection:

  test       :=  PROPERTY OPERATOR ARGUMENT [ignoring case]
  selection  :=  ADJECTIVE PROPERTY [ignoring case]

Properties:

  path               the path as reported
  name               the part after the last path separator
  directory          the part up to and including the last separator
  directory name     the name of the containing directory
  extension          the last dot-suffix of the name, with the dot
  mtime              modification time (also: modification time)
  index              1-based position of the command-line argument
                     the file was found under

Operators (each has a negation: "is not", "not contains", ...):

  is                 exact equality
  contains           substring
  starts with        prefix
  ends with          suffix
  matches re         regular expression, matched from the start of
                     the value (also: matches regex, matches regexp)

Regular expressions use Go's RE2 syntax. "ignoring case" applies the
engine's case-insensitive flag rather than rewriting the pattern.

Adjectives:

  shorter, longer        length of the text value
  shallower, deeper      number of path separators
  earlier, later         ordering on the value (also: lower, higher)

The argument is a single word; quote it (single or double quotes) or
escape spaces with a backslash when it contains whitespace. Inside
quotes, \\ and the quote character escape themselves, and \xNN,
\uNNNN and \UNNNNNN escapes are understood.

Examples:

  --prefer "shorter path"
      mark the file with the shortest path in each group

  --prefer "shorter path, earlier path"
      as above, breaking ties in favor of the lexicographically
      first path

  --prefer "name is 'master copy.jpg' ignoring case, earlier mtime"
      prefer files with that exact name regardless of case, then the
      oldest

  --prefer "directory not contains backup, deeper path"
      avoid marking files under backup directories, then prefer the
      most deeply nested survivor
`
