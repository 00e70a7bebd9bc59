/*
Package corpus stores named speakers' training text and a log of past
identifications in a SQLite database.

Only raw text is stored; models are rebuilt from it on every run. Samples
added to a speaker are concatenated in insertion order when the speaker's
text is read back.
*/
package corpus
